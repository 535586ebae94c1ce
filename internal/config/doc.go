// Package config implements the Configuration object: the
// controller-owned mapping from server address to the ordered list of
// shards it owns, plus a monotonically increasing epoch, and the
// server_for(key) routing primitive built on top of it.
//
// Configuration itself carries no synchronization; the shardcontroller
// guards all mutation with its own configuration lock, and the client
// router guards its cached copy with its own readers-writer mutex, the
// same split internal/coordinator/shard_registry.go draws between its
// pure ShardAssignment value and the ShardRegistry that synchronizes
// access to it, except the routing key here is an explicit alphabet
// range rather than a hash bucket.
package config
