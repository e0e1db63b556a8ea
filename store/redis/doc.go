// Package redis provides a Redis-backed store.ByteStore.
//
// Lookups use a single MGET and writes a single pipeline of SET commands, so
// a batch costs one round trip either way. Keys are namespaced with a
// configurable prefix ("crag:" by default). Entries never expire unless a
// TTL is configured.
//
// # Basic Usage
//
//	s := redis.NewRedisStore(redis.RedisOptions{
//	    Addr:   "localhost:6379",
//	    Prefix: "crag:embeddings:",
//	})
//	defer s.Close()
//
//	embedder := cache.NewCacheBackedEmbedder(underlying, s, "text-embedding-3-small")
package redis
