// Package redis implements store.FullStore on Redis. Correlation records
// are plain string keys: SET NX parks a token and GETDEL takes it, so a
// take is a single atomic command. DLQ entries are hashes indexed by a
// sorted set scored on failure time.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
