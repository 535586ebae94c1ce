package config

import (
	"sort"

	"github.com/dreamware/torua/internal/shardkey"
)

// Configuration is the controller's authoritative placement map: which
// server owns which shards, plus the epoch it was last bumped at.
//
// Configuration does not enforce its own invariants on every mutation —
// callers (the shardcontroller) are responsible for maintaining
// disjointness and sorted-by-Low shard lists per server, the same way
// ShardRegistry assumes its caller passes valid shard IDs. Configuration
// itself only implements the read-side routing primitive and safe
// copying.
type Configuration struct {
	// Servers maps a server address to the shards it currently owns, in
	// order by Low. A server with an empty (non-nil) slice has joined
	// but owns no shards yet.
	Servers map[string][]shardkey.Shard

	// Epoch is bumped by the controller on every successful Join, Leave,
	// or Move.
	Epoch uint64
}

// New returns an empty configuration at epoch 0.
func New() *Configuration {
	return &Configuration{Servers: make(map[string][]shardkey.Shard)}
}

// ServerFor resolves the owning server for key, returning ("", false) if
// no server's shard list covers it. Because shards assigned to different
// servers never overlap (an invariant the controller maintains), at most
// one server can match.
func (c *Configuration) ServerFor(key string) (string, bool) {
	for addr, shards := range c.Servers {
		for _, s := range shards {
			if s.Contains(key) {
				return addr, true
			}
		}
	}
	return "", false
}

// ServerNames returns the configuration's server addresses in sorted
// order, for deterministic iteration (logging, tests, wire encoding).
func (c *Configuration) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for addr := range c.Servers {
		names = append(names, addr)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy, so a caller (typically Query()'s response
// path) can hand out a snapshot without holding the controller's lock
// while the caller serializes it.
func (c *Configuration) Clone() *Configuration {
	out := &Configuration{
		Servers: make(map[string][]shardkey.Shard, len(c.Servers)),
		Epoch:   c.Epoch,
	}
	for addr, shards := range c.Servers {
		cp := make([]shardkey.Shard, len(shards))
		copy(cp, shards)
		out.Servers[addr] = cp
	}
	return out
}

// Disjoint reports whether the configuration's invariant — no two
// servers own overlapping shards — currently holds. Used by tests to
// check the invariant the controller is responsible for maintaining.
func (c *Configuration) Disjoint() bool {
	var all []shardkey.Shard
	for _, shards := range c.Servers {
		all = append(all, shards...)
	}
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if shardkey.Overlaps(all[i], all[j]) {
				return false
			}
		}
	}
	return true
}

// SortShards sorts a server's shard list by Low ascending, the order
// shards are stored in throughout a Configuration.
func SortShards(shards []shardkey.Shard) {
	sort.Slice(shards, func(i, j int) bool { return shards[i].Low < shards[j].Low })
}

// Coalesce merges adjacent/overlapping shards in a sorted shard list into
// the minimal equivalent set, the way the controller's Move commit step
// coalesces a destination's shard list after appending a newly-acquired
// piece.
func Coalesce(shards []shardkey.Shard) []shardkey.Shard {
	if len(shards) == 0 {
		return shards
	}
	SortShards(shards)
	out := make([]shardkey.Shard, 0, len(shards))
	cur := shards[0]
	for _, s := range shards[1:] {
		// Adjacent means cur.High immediately precedes s.Low in the
		// folded alphabet, or the two already overlap/touch.
		if s.Low <= cur.High || symbolSucc(cur.High) == s.Low {
			if s.High > cur.High {
				cur.High = s.High
			}
			continue
		}
		out = append(out, cur)
		cur = s
	}
	out = append(out, cur)
	return out
}

// symbolSucc returns the folded alphabet symbol immediately after c, or
// 0 if c is the last symbol ('Z') or not a valid folded symbol.
func symbolSucc(c byte) byte {
	switch {
	case c >= '0' && c <= '8':
		return c + 1
	case c == '9':
		return 'A'
	case c >= 'A' && c <= 'Y':
		return c + 1
	default:
		return 0
	}
}
