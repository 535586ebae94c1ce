// Package integration exercises a full shardcontroller + kvserver +
// shardkvclient stack over real loopback TCP connections, the way a
// deployed cluster would run, rather than against any single package in
// isolation.
package integration

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/torua/internal/kvserver"
	"github.com/dreamware/torua/internal/shardcontroller"
	"github.com/dreamware/torua/internal/shardkey"
	"github.com/dreamware/torua/internal/shardkvclient"
	"github.com/dreamware/torua/internal/transport"
)

// cluster holds a running controller and a set of storage servers, every
// shard already assigned, ready to be driven through a Client.
type cluster struct {
	controllerAddr string
	serverAddrs    []string
	ctrl           *shardcontroller.Controller
	client         *shardkvclient.Client
	stop           func()
}

// newCluster brings up a controller and n storage servers over real TCP,
// joins every server, and splits the full key range evenly across them.
func newCluster(t *testing.T, n int) *cluster {
	t.Helper()
	pool := transport.NewPool(0, time.Second)

	ctrl := shardcontroller.New(pool, zap.NewNop())
	ctrlSrv, err := shardcontroller.Listen("127.0.0.1:0", ctrl, zap.NewNop())
	if err != nil {
		t.Fatalf("shardcontroller.Listen: %v", err)
	}
	go ctrlSrv.Serve()

	var (
		srvs  []*kvserver.Server
		addrs []string
	)
	for i := 0; i < n; i++ {
		kv := kvserver.New("", pool, zap.NewNop())
		srv, err := kvserver.Listen("127.0.0.1:0", kv, zap.NewNop())
		if err != nil {
			t.Fatalf("kvserver.Listen %d: %v", i, err)
		}
		go srv.Serve()
		srvs = append(srvs, srv)
		addrs = append(addrs, srv.Addr())

		if err := kvserver.JoinController(pool, ctrlSrv.Addr(), srv.Addr(), zap.NewNop()); err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
	}

	bounds := shardkey.SplitInto(n)
	for i, addr := range addrs {
		if err := ctrl.Move(addr, []shardkey.Shard{bounds[i]}); err != nil {
			t.Fatalf("Move to %s: %v", addr, err)
		}
	}

	client := shardkvclient.New(ctrlSrv.Addr(), pool, zap.NewNop())

	stop := func() {
		for _, srv := range srvs {
			srv.Close()
		}
		ctrlSrv.Close()
		pool.Close()
	}

	return &cluster{
		controllerAddr: ctrlSrv.Addr(),
		serverAddrs:    addrs,
		ctrl:           ctrl,
		client:         client,
		stop:           stop,
	}
}

func TestStoreAndRetrieve(t *testing.T) {
	c := newCluster(t, 2)
	defer c.stop()

	if err := c.client.Put("greeting", "Hello World"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value, present, err := c.client.Get("greeting")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !present || value != "Hello World" {
		t.Errorf("expected (\"Hello World\", true), got (%q, %v)", value, present)
	}
}

func TestUpdateExistingValue(t *testing.T) {
	c := newCluster(t, 2)
	defer c.stop()

	if err := c.client.Put("counter", "1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.client.Put("counter", "2"); err != nil {
		t.Fatalf("Put (update): %v", err)
	}
	value, _, err := c.client.Get("counter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "2" {
		t.Errorf("expected \"2\", got %q", value)
	}
}

func TestDeleteValue(t *testing.T) {
	c := newCluster(t, 2)
	defer c.stop()

	if err := c.client.Put("temp", "temporary data"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.client.Delete("temp"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, present, err := c.client.Get("temp")
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if present {
		t.Error("expected key to be absent after Delete")
	}
}

func TestNonExistentKey(t *testing.T) {
	c := newCluster(t, 2)
	defer c.stop()

	_, present, err := c.client.Get("does-not-exist")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if present {
		t.Error("expected absent key to report Present=false")
	}
}

func TestKeysSpreadAcrossServers(t *testing.T) {
	c := newCluster(t, 4)
	defer c.stop()

	keys := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}
	for i, key := range keys {
		if err := c.client.Put(key, fmt.Sprintf("value%d", i+1)); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}

	seen := make(map[string]bool)
	for _, key := range keys {
		_, present, err := c.client.Get(key)
		if err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
		if !present {
			t.Errorf("key %s missing after Put", key)
		}
		seen[key] = true
	}

	if len(seen) != len(keys) {
		t.Errorf("expected all %d keys retrievable, saw %d", len(keys), len(seen))
	}
}

func TestConsistentRouting(t *testing.T) {
	c := newCluster(t, 3)
	defer c.stop()

	if err := c.client.Put("consistent-key", "initial"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for i := 0; i < 10; i++ {
		value, present, err := c.client.Get("consistent-key")
		if err != nil {
			t.Fatalf("Get attempt %d: %v", i+1, err)
		}
		if !present || value != "initial" {
			t.Errorf("attempt %d: expected (\"initial\", true), got (%q, %v)", i+1, value, present)
		}
	}
}

func TestConcurrentOperations(t *testing.T) {
	c := newCluster(t, 3)
	defer c.stop()

	const numClients = 10
	var wg sync.WaitGroup
	errs := make(chan error, numClients*2)

	wg.Add(numClients)
	for i := 0; i < numClients; i++ {
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent-key-%d", id)
			value := fmt.Sprintf("concurrent-value-%d", id)
			if err := c.client.Put(key, value); err != nil {
				errs <- fmt.Errorf("put failed for client %d: %w", id, err)
			}
		}(i)
	}
	wg.Wait()

	wg.Add(numClients)
	for i := 0; i < numClients; i++ {
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent-key-%d", id)
			want := fmt.Sprintf("concurrent-value-%d", id)
			got, present, err := c.client.Get(key)
			if err != nil {
				errs <- fmt.Errorf("get failed for client %d: %w", id, err)
				return
			}
			if !present || got != want {
				errs <- fmt.Errorf("client %d: expected (%q, true), got (%q, %v)", id, want, got, present)
			}
		}(i)
	}
	wg.Wait()

	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestVariousKeyPatterns(t *testing.T) {
	c := newCluster(t, 2)
	defer c.stop()

	cases := []struct{ key, value string }{
		{"simple", "text"},
		{"user@example.com", "email-data"},
		{"path/to/resource", "nested-data"},
		{"key-with-spaces here", "spaced-value"},
		{"very:long:key:with:many:colons:and:segments", "complex"},
	}

	for _, tc := range cases {
		if err := c.client.Put(tc.key, tc.value); err != nil {
			t.Errorf("Put %q: %v", tc.key, err)
			continue
		}
		value, present, err := c.client.Get(tc.key)
		if err != nil {
			t.Errorf("Get %q: %v", tc.key, err)
			continue
		}
		if !present || value != tc.value {
			t.Errorf("key %q: expected (%q, true), got (%q, %v)", tc.key, tc.value, value, present)
		}
	}
}

func TestMultiGetMultiPutAcrossCluster(t *testing.T) {
	c := newCluster(t, 4)
	defer c.stop()

	keys := make([]string, 50)
	values := make([]string, 50)
	for i := range keys {
		keys[i] = fmt.Sprintf("bulk-key-%02d", i)
		values[i] = fmt.Sprintf("bulk-value-%02d", i)
	}

	if err := c.client.MultiPut(keys, values); err != nil {
		t.Fatalf("MultiPut: %v", err)
	}

	got, err := c.client.MultiGet(keys)
	if err != nil {
		t.Fatalf("MultiGet: %v", err)
	}
	for i, kv := range got {
		if !kv.Present || kv.Value != values[i] {
			t.Errorf("key %s: expected (%q, true), got (%q, %v)", keys[i], values[i], kv.Value, kv.Present)
		}
	}
}

func TestMoveHandoffPreservesData(t *testing.T) {
	c := newCluster(t, 2)
	defer c.stop()

	keys := []string{"move-a", "move-b", "move-c", "move-d"}
	for i, key := range keys {
		if err := c.client.Put(key, fmt.Sprintf("v%d", i)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	// Move the whole range onto a brand new third server and verify
	// every key is still reachable afterward.
	pool := transport.NewPool(0, time.Second)
	defer pool.Close()
	kv := kvserver.New("", pool, zap.NewNop())
	srv, err := kvserver.Listen("127.0.0.1:0", kv, zap.NewNop())
	if err != nil {
		t.Fatalf("kvserver.Listen: %v", err)
	}
	defer srv.Close()
	go srv.Serve()
	if err := kvserver.JoinController(pool, c.controllerAddr, srv.Addr(), zap.NewNop()); err != nil {
		t.Fatalf("join third server: %v", err)
	}
	fullRange := shardkey.New(shardkey.SymbolAt(0), shardkey.SymbolAt(shardkey.AlphabetSize-1))
	if err := c.ctrl.Move(srv.Addr(), []shardkey.Shard{fullRange}); err != nil {
		t.Fatalf("Move: %v", err)
	}

	for i, key := range keys {
		value, present, err := c.client.Get(key)
		if err != nil {
			t.Fatalf("Get %s after move: %v", key, err)
		}
		if !present || value != fmt.Sprintf("v%d", i) {
			t.Errorf("key %s after move: expected (\"v%d\", true), got (%q, %v)", key, i, value, present)
		}
	}
}
