// Package shardkey implements the key-space partitioning arithmetic that
// underlies the whole store: the 62-symbol routing alphabet, the Shard
// range type, and the pure predicates ("does this shard cover this key",
// "do these two shards overlap") that the shardcontroller and storage
// server build on.
//
// Everything here is pure data manipulation; there is
// no I/O, no locking, and no shared state, splitting pure shard
// arithmetic from the stateful store that uses it, the same separation
// internal/shard and internal/storage draw around a hash-bucket shard,
// except here a "shard" is purely the range — ownership and storage live
// one layer up, in internal/config and internal/kvserver respectively.
//
// Alphabet:
//
//	'0'-'9' < 'A'-'Z' < 'a'-'z', with lowercase folding to its uppercase
//	counterpart before comparison, so the effective ordered alphabet is:
//
//	  0 1 2 3 4 5 6 7 8 9 A B C D E F G H I J K L M N O P Q R S T U V W X Y Z
//
// A key's shard membership is determined solely by its folded first byte.
package shardkey
