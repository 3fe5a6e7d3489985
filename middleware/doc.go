// Package middleware provides composable middleware for stage execution.
//
// A [Middleware] is a function that wraps a stage handler. Middleware are
// composed into a chain using [Chain] and applied before each task runs.
// They are applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs stage, task id, duration and outcome
//   - [Recover]: catches panics and converts them to errors
//   - [Timeout]: cancels the task context after the stage's deadline
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records per-stage duration and outcome counters
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
