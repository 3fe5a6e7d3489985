// Package ext defines the extension system for volshift.
//
// Extensions are notified of lifecycle events and can react to them by
// recording metrics, paging an operator or writing audit logs. Each
// lifecycle hook is a separate interface so extensions opt in only to the
// events they care about.
//
// # Implementing an Extension
//
//	type Pager struct{}
//
//	func (p *Pager) Name() string { return "pager" }
//
//	func (p *Pager) OnDLQ(ctx context.Context, e *dlq.Entry) error {
//	    return page(ctx, e.Stage, e.Error)
//	}
//
// # Task Hooks
//
//   - [TaskStarted]: an activity task was handed to a stage handler
//   - [TaskCompleted]: the stage handler returned without error
//   - [TaskFailed]: the stage handler returned an error
//   - [StageInitiated]: a stage parked its token under a resource
//   - [AttachRetrying]: an attach attempt failed and will be retried
//
// # Event Hooks
//
//   - [TokenRedeemed]: a resumer took a record and resumed the run
//   - [CorrelationMiss]: an event that should have matched a record did not
//   - [ExecutionStarted]: an alarm started a new run
//
// # Other Hooks
//
//   - [DLQ]: a failure was written to the dead letter queue
//   - [Shutdown]: the runtime is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
