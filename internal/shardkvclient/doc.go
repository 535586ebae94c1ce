// Package shardkvclient implements the client router (ShardKvClient):
// it caches the shardcontroller's configuration, resolves each key to
// an owning server, and fans batched MultiGet/MultiPut requests out to
// the servers involved in parallel.
//
// This grows the single shared round-trip helper reused by every caller
// (cluster.PostJSON/GetJSON) into a typed client with its own connection
// pool and a cached Configuration, and adopts golang.org/x/sync/errgroup
// for the fan-out/fan-in MultiGet and MultiPut need to beat sequential
// per-key Get on batches.
package shardkvclient
