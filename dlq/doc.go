// Package dlq records stages that failed or stalled so an operator can see
// them. It is the alerting path for runs that would otherwise sit
// suspended in the orchestrator with nothing but a log line to show for it.
//
// Entries are written when a stage cannot start its external operation,
// when command output lacks the fields the next stage needs, when the
// attach loop gives up, and when a taken token turns out to be unknown to
// the orchestrator.
//
// # Admin API
//
//   - GET  /v1/dlq                 list entries
//   - GET  /v1/dlq/{entryId}       get a single entry
//   - POST /v1/dlq/{entryId}/resolve mark an entry handled
package dlq
