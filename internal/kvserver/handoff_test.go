package kvserver

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/shardkey"
	"github.com/dreamware/torua/internal/transport"
)

// startTestServer runs a real KvServer over a loopback listener and
// returns its address and a stop function.
func startTestServer(t *testing.T, pool *transport.Pool, shards ...shardkey.Shard) (addr string, kv *KvServer, stop func()) {
	t.Helper()
	kv = New("", pool, zap.NewNop())
	kv.shards = shards
	srv, err := Listen("127.0.0.1:0", kv, zap.NewNop())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve()
	return srv.Addr(), kv, func() { srv.Close() }
}

func TestShardHandoffMovesKeysBetweenRealServers(t *testing.T) {
	pool := transport.NewPool(0, time.Second)
	defer pool.Close()

	sourceAddr, source, stopSource := startTestServer(t, pool, shardkey.New('0', '9'))
	defer stopSource()
	destAddr, dest, stopDest := startTestServer(t, pool, shardkey.New('A', 'Z'))
	defer stopDest()

	source.Put("1", "one")
	source.Put("2", "two")

	if err := source.ShardHandoff(shardkey.New('0', '9'), destAddr); err != nil {
		t.Fatalf("ShardHandoff: %v", err)
	}

	if _, _, err := source.Get("1"); !kverrors.Is(err, kverrors.WrongShard) {
		t.Fatalf("source.Get after handoff = %v, want WrongShard", err)
	}
	if v, present, err := dest.Get("1"); err != nil || !present || v != "one" {
		t.Fatalf("dest.Get(1) after handoff = (%q, %v, %v), want (one, true, nil)", v, present, err)
	}

	_ = sourceAddr
}
