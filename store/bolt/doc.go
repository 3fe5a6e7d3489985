// Package bolt implements store.FullStore on a local bbolt file. bbolt
// serialises writers, so a take inside one Update transaction is atomic.
// Suitable for a single resumer process; use a network store when several
// processes share tokens.
package bolt
