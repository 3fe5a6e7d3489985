// Package initiator implements the stage handlers the activity pollers
// run. Five of them start an asynchronous cloud operation and park the
// task token in the correlation store under the resource that operation
// will report on; the resumer for that resource redeems it later.
//
// The sixth, attach-and-cleanup, completes within its own invocation: it
// moves the replacement volume onto the target, restarts the target,
// terminates the worker and redeems its own token.
//
// A handler that cannot start its external operation writes no record
// and returns an error wrapping volshift.ErrExternalCall. Routing that
// error to the dead letter queue and the orchestrator is the worker's
// job.
package initiator
