// Package volshift moves the data on an instance's block-storage volume
// onto a larger replacement volume, driven by a durable external state
// machine that suspends between stages.
//
// Every stage starts one asynchronous cloud operation and parks the
// orchestrator's continuation token in a correlation store keyed by the
// resource the completion event will name. When that event arrives, a
// resumer takes the record (atomically, so a token is redeemed at most
// once), extracts any stage output and redeems the token.
//
// # Quick Start
//
//	rt, err := volshift.New(
//	    volshift.WithStore(dynamoStore),
//	    volshift.WithConcurrency(4),
//	)
//
// # Architecture
//
// Each subsystem (correlation, dlq) defines its own store interface and a
// single backend implements them. Stage handlers run inside a worker pool
// that long-polls orchestrator activities; completion events enter through
// the HTTP intake in the api package. The engine package wires everything.
package volshift
