// Package engine wires all volshift subsystems together and exposes the
// application-level entry points: Start/Stop for the activity pollers and
// Handle for incoming events.
//
// # Building an Engine
//
//	rt, err := volshift.New(
//	    volshift.WithStore(store),
//	    volshift.WithConcurrency(4),
//	)
//
//	eng, err := engine.Build(rt, cloud.NewClients(awsCfg),
//	    engine.WithActivities(activities),
//	    engine.WithStateMachine(stateMachineARN),
//	    engine.WithLimits(limit.Config{Stage: workflow.StageCreateInstance, MaxConcurrency: 2}),
//	    engine.WithDLQRetention("@hourly", 14*24*time.Hour),
//	)
//
// # Options
//
//   - [WithExtension] registers a lifecycle extension
//   - [WithMiddleware] adds a middleware to the stage chain
//   - [WithActivities] sets the activity polled for each stage
//   - [WithStateMachine] sets the state machine alarms start
//   - [WithLimits] configures per-stage rate limits and concurrency
//   - [WithDLQRetention] schedules the DLQ purge
//   - [WithTracerProvider] sets the OpenTelemetry tracer provider
//   - [WithMeterProvider] sets the OpenTelemetry meter provider
package engine
