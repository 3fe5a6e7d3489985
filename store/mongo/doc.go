// Package mongo implements store.FullStore on MongoDB using the official
// v2 driver. Correlation documents are keyed by "{resourceID}/{stage}" in
// _id, so InsertOne rejects a second live record and FindOneAndDelete
// takes one atomically.
//
// Usage:
//
//	client, err := mongo.Connect(options.Client().ApplyURI(uri))
//	s := mongostore.New(client.Database("volshift"))
//	if err := s.Migrate(ctx); err != nil { ... }
package mongo
