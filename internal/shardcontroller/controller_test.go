package shardcontroller

import (
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/shardkey"
	"github.com/dreamware/torua/internal/transport"
)

func newTestController() *Controller {
	return New(transport.NewPool(0, 0), zap.NewNop())
}

func TestJoinThenLeave(t *testing.T) {
	c := newTestController()
	if err := c.Join("s1:1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := c.Join("s1:1"); !kverrors.Is(err, kverrors.AlreadyJoined) {
		t.Fatalf("second Join = %v, want AlreadyJoined", err)
	}
	if err := c.Leave("s1:1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if err := c.Leave("s1:1"); !kverrors.Is(err, kverrors.NotJoined) {
		t.Fatalf("second Leave = %v, want NotJoined", err)
	}
	cfg := c.Query()
	if _, ok := cfg.Servers["s1:1"]; ok {
		t.Fatal("s1:1 should not be present after Leave")
	}
}

func TestConcurrentJoinExactlyOneSucceeds(t *testing.T) {
	for trial := 0; trial < 5; trial++ {
		c := newTestController()
		const n = 1000
		var wg sync.WaitGroup
		var oks, already int32
		var mu sync.Mutex
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				err := c.Join("server:123")
				mu.Lock()
				if err == nil {
					oks++
				} else if kverrors.Is(err, kverrors.AlreadyJoined) {
					already++
				}
				mu.Unlock()
			}()
		}
		wg.Wait()
		if oks != 1 || already != n-1 {
			t.Fatalf("trial %d: oks=%d already=%d, want 1 and %d", trial, oks, already, n-1)
		}
	}
}

func TestQueryReturnsIndependentSnapshot(t *testing.T) {
	c := newTestController()
	c.Join("s1:1")
	cfg := c.Query()
	cfg.Servers["s1:1"] = append(cfg.Servers["s1:1"], shardkey.New('0', '9'))
	live := c.Query()
	if len(live.Servers["s1:1"]) != 0 {
		t.Fatal("mutating a Query() snapshot should not affect the controller's own configuration")
	}
}

func TestMoveRejectsUnjoinedDest(t *testing.T) {
	c := newTestController()
	c.Join("s1:1")
	err := c.Move("ghost:1", []shardkey.Shard{shardkey.New('0', '9')})
	if !kverrors.Is(err, kverrors.MoveFailed) {
		t.Fatalf("Move to unjoined dest = %v, want MoveFailed", err)
	}
}

func TestMoveRejectsPartiallyUnownedRange(t *testing.T) {
	c := newTestController()
	c.Join("s1:1")
	c.Join("s2:1")
	// s1 owns [0,7] only; requesting [0,9] includes unowned [8,9].
	c.mu.Lock()
	c.cfg.Servers["s1:1"] = []shardkey.Shard{shardkey.New('0', '7')}
	c.mu.Unlock()

	err := c.Move("s2:1", []shardkey.Shard{shardkey.New('0', '9')})
	if !kverrors.Is(err, kverrors.MoveFailed) {
		t.Fatalf("Move over a gap = %v, want MoveFailed", err)
	}
	cfg := c.Query()
	if len(cfg.Servers["s2:1"]) != 0 {
		t.Fatal("a failed Move must leave the configuration unchanged")
	}
}

func TestMoveToCurrentOwnerIsNoop(t *testing.T) {
	c := newTestController()
	c.Join("s1:1")
	c.mu.Lock()
	c.cfg.Servers["s1:1"] = []shardkey.Shard{shardkey.New('0', '9')}
	c.mu.Unlock()

	if err := c.Move("s1:1", []shardkey.Shard{shardkey.New('0', '9')}); err != nil {
		t.Fatalf("Move to current owner: %v", err)
	}
	cfg := c.Query()
	if len(cfg.Servers["s1:1"]) != 1 || cfg.Servers["s1:1"][0] != shardkey.New('0', '9') {
		t.Fatalf("configuration changed by a no-op Move: %+v", cfg.Servers["s1:1"])
	}
}

func TestDecomposeSplitsAcrossMultipleSources(t *testing.T) {
	c := newTestController()
	c.Join("s1:1")
	c.Join("s2:1")
	c.Join("dest:1")
	c.mu.Lock()
	c.cfg.Servers["s1:1"] = []shardkey.Shard{shardkey.New('0', '7')}
	c.cfg.Servers["s2:1"] = []shardkey.Shard{shardkey.New('8', 'F')}
	c.mu.Unlock()

	pieces, err := decompose(c.cfg, []shardkey.Shard{shardkey.New('0', 'F')}, "dest:1")
	if err != nil {
		t.Fatalf("decompose: %v", err)
	}
	if len(pieces) != 2 {
		t.Fatalf("decompose produced %d pieces, want 2: %+v", len(pieces), pieces)
	}
	if pieces[0].source != "s1:1" || pieces[0].shard != shardkey.New('0', '7') {
		t.Errorf("piece 0 = %+v", pieces[0])
	}
	if pieces[1].source != "s2:1" || pieces[1].shard != shardkey.New('8', 'F') {
		t.Errorf("piece 1 = %+v", pieces[1])
	}
}
