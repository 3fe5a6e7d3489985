// Package postgres implements store.FullStore on PostgreSQL using pgx/v5.
// Take is a single DELETE ... RETURNING, so two resumers racing for the same
// key cannot both receive the token.
package postgres
