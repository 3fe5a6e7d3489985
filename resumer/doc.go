// Package resumer turns completion events into orchestrator redemptions.
//
// Each resumer derives a resource id from its event, takes the live
// correlation record for that resource and stage, and redeems the parked
// token with the payload the next stage expects. Taking deletes the
// record in the same step, so one record is redeemed at most once.
//
// Command status events are ambiguous: both the resize and the
// shuffle-and-copy commands produce them. The command resumer walks an
// ordered list of candidates and acts on the first stage that holds a
// live record for the instance the command ran on.
//
// Alarm events carry no token; they start a new run.
package resumer
