// Package store holds the shared key/value storage behind the access token.
//
// A [Backend] is a key/value store visible to several execution contexts at once: goroutines
// sharing a [MemoryHub], processes sharing a SQLite file, or machines sharing a Redis server.
// Every backend instance has its own origin id and tags its writes with it, so that
// [Backend.Watch] only reports changes made somewhere else. That is the property the session
// controller relies on to avoid re-fetching data in reaction to its own writes.
//
// [TokenStore] narrows a backend to the single access-token key and swallows storage errors:
// an unavailable backend reads as "no token" and never fails the caller.
//
// Backends:
//   - [MemoryBackend] : process-local, used by tests and the memory driver
//   - [SQLiteBackend] : kv_store table, change detection by polling a per-row version
//   - [RedisBackend] : plain keys plus a pub/sub channel per key carrying change records
//   - [NoopBackend] : stands in when the configured backend cannot be opened
package store
