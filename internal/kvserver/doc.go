// Package kvserver implements the storage server (KvServer): a single
// key-value map restricted to the shards the shardcontroller has
// assigned this server, guarded by one exclusive mutex so MultiGet/MultiPut
// get per-server atomicity for free.
//
// This reshapes the internal/shard + internal/storage split (one
// storage.Store per shard.Shard, addressed by integer shard ID) into a
// single store per server scoped by ordered key ranges instead of
// per-shard stores scoped by hash bucket: a server owns however many
// ranges the controller currently assigns it, not a fixed partition
// count. Join-with-backoff and Leave-on-shutdown are grounded on
// cmd/node's register() retry loop.
package kvserver
