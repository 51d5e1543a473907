// Package sharedstate implements the shared job state store: the mapping a
// job's tasks read and write between stages, addressable by job id from any
// worker process.
//
// RedisStore is the production implementation. MemoryStore serves tests and
// single-process development runs and keeps the same copy semantics, so a
// value read back never aliases a value written.
package sharedstate
