package config

import (
	"testing"

	"github.com/dreamware/torua/internal/shardkey"
)

func TestServerForFiveShards(t *testing.T) {
	c := New()
	shards := shardkey.SplitInto(5)
	servers := []string{"server0", "server1", "server2", "server3", "server4"}
	for i := 0; i < 4; i++ {
		c.Servers[servers[i]] = []shardkey.Shard{shards[i]}
	}
	c.Servers[servers[4]] = []shardkey.Shard{}

	cases := []struct {
		key  string
		want string
		ok   bool
	}{
		{"0123", "server0", true},
		{"89A", "server1", true},
		{"GDPR", "server2", true},
		{"servers", "server3", true},
		{"windmill", "", false},
	}
	for _, tt := range cases {
		got, ok := c.ServerFor(tt.key)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ServerFor(%q) = (%q, %v), want (%q, %v)", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDisjointDetectsOverlap(t *testing.T) {
	c := New()
	c.Servers["a"] = []shardkey.Shard{shardkey.New('0', '9')}
	c.Servers["b"] = []shardkey.Shard{shardkey.New('5', 'F')}

	if c.Disjoint() {
		t.Error("expected overlapping shards across servers to be detected")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := New()
	c.Servers["a"] = []shardkey.Shard{shardkey.New('0', '9')}
	c.Epoch = 3

	clone := c.Clone()
	clone.Servers["a"][0] = shardkey.New('A', 'Z')
	clone.Epoch = 9

	if c.Servers["a"][0] != shardkey.New('0', '9') {
		t.Error("mutating clone's shard list affected the original")
	}
	if c.Epoch != 3 {
		t.Error("mutating clone's epoch affected the original")
	}
}

func TestCoalesceMergesAdjacent(t *testing.T) {
	in := []shardkey.Shard{shardkey.New('8', 'E'), shardkey.New('0', '7')}
	out := Coalesce(in)
	if len(out) != 1 || out[0] != shardkey.New('0', 'E') {
		t.Errorf("Coalesce(%v) = %v, want single shard [0,E]", in, out)
	}
}

func TestCoalesceKeepsDisjointSeparate(t *testing.T) {
	in := []shardkey.Shard{shardkey.New('F', 'L'), shardkey.New('0', '7')}
	out := Coalesce(in)
	if len(out) != 2 {
		t.Errorf("Coalesce(%v) = %v, want 2 disjoint shards unchanged", in, out)
	}
}
