// Package workflow describes the fixed volume migration graph: the closed
// set of stages, the state threaded between them by the orchestrator, the
// payload each stage redeems its token with, and the state machine
// document that declares the graph to the orchestrator.
//
// The graph is
//
//	resize
//	  -> parallel{create-instance, create-volume, stop-target}
//	  -> shuffle-and-copy
//	  -> attach-and-cleanup
//
// The parallel join folds the three branch outputs into
// [State.WorkerInstance]: the worker id from create-instance and the
// replacement volume id from create-volume. stop-target's output is dropped.
//
// State is never mutated in place. Merges return a new value.
package workflow
