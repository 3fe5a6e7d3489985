// Package sqlite implements store.FullStore on an embedded SQLite file
// through the pure-Go modernc.org/sqlite driver. It suits a single
// volshift process; SQLite allows one writer, so the store keeps a single
// connection open.
//
// Usage:
//
//	s, err := sqlite.Open(ctx, "/var/lib/volshift/volshift.db")
//	if err != nil { ... }
//	defer s.Close()
//	if err := s.Migrate(ctx); err != nil { ... }
package sqlite
