// Package audithook is a volshift extension that turns lifecycle hooks
// into structured audit events.
//
// Every task, correlation and DLQ hook emits an [AuditEvent] through the
// [Recorder] interface, with a severity (info for normal progress, warning
// for retries and misses, critical for failures) and metadata such as the
// stage, the resource id and the elapsed time.
//
// # Usage
//
//	audithook.New(audithook.NewSlogRecorder(logger))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionTaskFailed,
//	        audithook.ActionDLQPushed,
//	        audithook.ActionCorrelationMiss,
//	    ),
//	)
package audithook
