package shardkvclient

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/torua/internal/config"
	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/transport"
	"github.com/dreamware/torua/internal/wire"
)

// Client is the shard-aware key-value client: it caches
// the controller's Configuration, routes single-key operations to the
// owning server with one refresh-and-retry on WrongShard, and fans
// multi-key batches out to every involved server concurrently.
type Client struct {
	controllerAddr string
	pool           *transport.Pool
	log            *zap.Logger

	mu  sync.RWMutex
	cfg *config.Configuration
}

// New builds a Client pointed at controllerAddr. The configuration cache
// starts empty; the first operation triggers a refresh.
func New(controllerAddr string, pool *transport.Pool, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		controllerAddr: controllerAddr,
		pool:           pool,
		log:            log,
		cfg:            config.New(),
	}
}

// Refresh fetches the latest configuration from the controller and
// replaces the cache.
func (c *Client) Refresh() error {
	resp, err := c.pool.Call(c.controllerAddr, wire.QueryRequest{})
	if err != nil {
		return err
	}
	qr, ok := resp.(wire.QueryResponse)
	if !ok {
		return kverrors.New(kverrors.Internal, "controller returned %T for Query", resp)
	}
	c.mu.Lock()
	c.cfg = qr.Configuration
	c.mu.Unlock()
	c.log.Info("refreshed configuration", zap.Uint64("epoch", qr.Configuration.Epoch), zap.Int("servers", len(qr.Configuration.Servers)))
	return nil
}

func (c *Client) serverFor(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.ServerFor(key)
}

// resolve looks up key's owning server, refreshing the cache once if the
// cache doesn't know it yet.
func (c *Client) resolve(key string) (string, error) {
	if addr, ok := c.serverFor(key); ok {
		return addr, nil
	}
	if err := c.Refresh(); err != nil {
		return "", err
	}
	if addr, ok := c.serverFor(key); ok {
		return addr, nil
	}
	return "", kverrors.New(kverrors.NoOwner, "no server owns key %q", key)
}

// call sends req to key's owning server, refreshing and retrying exactly
// once on WrongShard.
func (c *Client) call(key string, req wire.Request) (wire.Response, error) {
	addr, err := c.resolve(key)
	if err != nil {
		return nil, err
	}
	resp, err := c.pool.Call(addr, req)
	if err == nil {
		return resp, nil
	}
	if !kverrors.Is(err, kverrors.WrongShard) {
		return nil, err
	}
	c.log.Warn("stale routing entry, refreshing and retrying once", zap.String("key", key), zap.String("server", addr))
	if refreshErr := c.Refresh(); refreshErr != nil {
		return nil, refreshErr
	}
	addr, err = c.resolve(key)
	if err != nil {
		return nil, err
	}
	return c.pool.Call(addr, req)
}

// Get returns the value at key, or reports its absence.
func (c *Client) Get(key string) (string, bool, error) {
	resp, err := c.call(key, wire.GetRequest{Key: key})
	if err != nil {
		return "", false, err
	}
	get := resp.(wire.GetResponse)
	return get.Value, get.Present, nil
}

// Put stores value at key.
func (c *Client) Put(key, value string) error {
	_, err := c.call(key, wire.PutRequest{Key: key, Value: value})
	return err
}

// Append concatenates value onto key's existing value.
func (c *Client) Append(key, value string) error {
	_, err := c.call(key, wire.AppendRequest{Key: key, Value: value})
	return err
}

// Delete removes key.
func (c *Client) Delete(key string) error {
	_, err := c.call(key, wire.DeleteRequest{Key: key})
	return err
}

// group partitions keys (and, for MultiPut, their parallel values) by
// owning server, returning an error without partial grouping if any key
// has no owner.
func (c *Client) group(keys []string) (map[string][]int, error) {
	groups := make(map[string][]int)
	for i, k := range keys {
		addr, err := c.resolve(k)
		if err != nil {
			return nil, err
		}
		groups[addr] = append(groups[addr], i)
	}
	return groups, nil
}

// MultiGet resolves every key's owning server and issues one MultiGet per
// server concurrently, reassembling results into the caller's original
// key order.
func (c *Client) MultiGet(keys []string) ([]KeyValue, error) {
	groups, err := c.group(keys)
	if err != nil {
		return nil, err
	}

	out := make([]KeyValue, len(keys))
	g := new(errgroup.Group)
	for addr, indices := range groups {
		addr, indices := addr, indices
		g.Go(func() error {
			subKeys := make([]string, len(indices))
			for j, idx := range indices {
				subKeys[j] = keys[idx]
			}
			resp, err := c.pool.Call(addr, wire.MultiGetRequest{Keys: subKeys})
			if err != nil {
				return err
			}
			mg := resp.(wire.MultiGetResponse)
			for j, idx := range indices {
				out[idx] = KeyValue{Value: mg.Values[j].Value, Present: mg.Values[j].Present}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MultiPut resolves every key's owning server and issues one MultiPut per
// server concurrently. On partial failure the client does not attempt
// compensation: cross-server atomicity is not guaranteed for batches.
func (c *Client) MultiPut(keys, values []string) error {
	if len(keys) != len(values) {
		return kverrors.New(kverrors.BadArgs, "MultiPut: %d keys but %d values", len(keys), len(values))
	}
	groups, err := c.group(keys)
	if err != nil {
		return err
	}

	g := new(errgroup.Group)
	for addr, indices := range groups {
		addr, indices := addr, indices
		g.Go(func() error {
			subKeys := make([]string, len(indices))
			subValues := make([]string, len(indices))
			for j, idx := range indices {
				subKeys[j] = keys[idx]
				subValues[j] = values[idx]
			}
			_, err := c.pool.Call(addr, wire.MultiPutRequest{Keys: subKeys, Values: subValues})
			return err
		})
	}
	return g.Wait()
}

// KeyValue pairs a value with a presence flag, the client-facing twin of
// wire.KeyValue.
type KeyValue struct {
	Value   string
	Present bool
}
