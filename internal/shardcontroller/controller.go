package shardcontroller

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/torua/internal/config"
	"github.com/dreamware/torua/internal/kverrors"
	"github.com/dreamware/torua/internal/shardkey"
	"github.com/dreamware/torua/internal/transport"
	"github.com/dreamware/torua/internal/wire"
)

// pendingMove is a transient record of an in-flight Move, kept only long
// enough to reject a second Move whose requested shards overlap it: the
// second observes the pending-move entry and fails with MoveFailed.
type pendingMove struct {
	dest   string
	shards []shardkey.Shard
}

// piece is one (source, shard-range) assignment the move decomposes a
// Move request into, aligned to current ownership boundaries.
type piece struct {
	source string
	shard  shardkey.Shard
}

// Controller is the shardcontroller's in-process state: the authoritative
// Configuration, guarded by a readers-writer mutex, and the set of
// in-flight moves.
//
// Controller plays the role coordinator.ShardRegistry plays for a
// hash-bucket cluster, but additionally drives the hand-off RPCs itself
// (ShardHandoff/BulkPut/AbortBulk) rather than leaving migration to an
// external rebalancer.
type Controller struct {
	mu  sync.RWMutex
	cfg *config.Configuration

	movesMu sync.Mutex
	moves   map[uint64]pendingMove
	nextID  uint64

	pool    *transport.Pool
	log     *zap.Logger
	metrics *Metrics
}

// New builds an empty Controller at epoch 0. pool is used to dial storage
// servers during Move's hand-off protocol; log may be zap.NewNop() in
// tests.
func New(pool *transport.Pool, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		cfg:     config.New(),
		moves:   make(map[uint64]pendingMove),
		pool:    pool,
		log:     log,
		metrics: NewMetrics(),
	}
}

// Join registers a new server with an empty shard list and bumps the
// epoch. Joining an address already present fails with AlreadyJoined and
// leaves the configuration unchanged.
func (c *Controller) Join(addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cfg.Servers[addr]; ok {
		c.metrics.joinRejected.Inc()
		return kverrors.New(kverrors.AlreadyJoined, "%s is already a member", addr)
	}
	c.cfg.Servers[addr] = []shardkey.Shard{}
	c.cfg.Epoch++
	c.metrics.joinAccepted.Inc()
	c.metrics.epoch.Set(float64(c.cfg.Epoch))
	c.metrics.serverCount.Set(float64(len(c.cfg.Servers)))
	c.log.Info("server joined", zap.String("addr", addr), zap.Uint64("epoch", c.cfg.Epoch))
	return nil
}

// Leave removes addr from the configuration; its shards become
// unassigned. Leaving an address not present fails with NotJoined.
func (c *Controller) Leave(addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cfg.Servers[addr]; !ok {
		c.metrics.leaveRejected.Inc()
		return kverrors.New(kverrors.NotJoined, "%s is not a member", addr)
	}
	delete(c.cfg.Servers, addr)
	c.cfg.Epoch++
	c.metrics.leaveAccepted.Inc()
	c.metrics.epoch.Set(float64(c.cfg.Epoch))
	c.metrics.serverCount.Set(float64(len(c.cfg.Servers)))
	c.log.Info("server left", zap.String("addr", addr), zap.Uint64("epoch", c.cfg.Epoch))
	return nil
}

// MustRegisterMetrics registers the controller's Prometheus instruments
// against reg. Call once per process after New.
func (c *Controller) MustRegisterMetrics(reg prometheus.Registerer) {
	c.metrics.MustRegister(reg)
}

// Query returns a deep copy of the current configuration, safe to hand to
// a caller without holding the controller's lock while it's serialized.
func (c *Controller) Query() *config.Configuration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Clone()
}

// Move reassigns requested to dest, driving the hand-off protocol against
// whichever servers currently own pieces of requested. On full success
// every piece has moved and the epoch is bumped; on any
// failure the controller's Configuration is left unchanged and an
// aggregate MoveFailed error is returned.
func (c *Controller) Move(dest string, requested []shardkey.Shard) error {
	c.mu.Lock()
	if _, ok := c.cfg.Servers[dest]; !ok {
		c.mu.Unlock()
		return kverrors.New(kverrors.MoveFailed, "destination %s has not joined", dest)
	}
	pieces, err := decompose(c.cfg, requested, dest)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	id, err := c.registerMove(dest, requested)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	defer c.releaseMove(id)

	if len(pieces) == 0 {
		// Every requested shard is already owned by dest.
		return nil
	}

	c.metrics.inFlightMoves.Inc()
	defer c.metrics.inFlightMoves.Dec()

	results := make([]error, len(pieces))
	g := new(errgroup.Group)
	for i, p := range pieces {
		i, p := i, p
		g.Go(func() error {
			_, err := c.pool.Call(p.source, wire.ShardHandoffRequest{Piece: p.shard, Dest: dest})
			results[i] = err
			return nil
		})
	}
	g.Wait()

	var failed int
	for i, p := range pieces {
		if results[i] != nil {
			failed++
			c.log.Warn("handoff piece failed", zap.String("source", p.source), zap.String("dest", dest), zap.Stringer("piece", p.shard), zap.Error(results[i]))
			continue
		}
		// This piece's source-side hand-off completed (source erased its
		// keys, dest already owns the piece per KvServer.BulkPut). Since a
		// sibling may still fail, its commit is provisional until we know
		// the whole Move succeeded; reverse it if not.
	}
	if failed > 0 {
		for i, p := range pieces {
			if results[i] == nil {
				if _, err := c.pool.Call(dest, wire.AbortBulkRequest{Piece: p.shard}); err != nil {
					c.log.Error("abort-bulk failed, destination may retain orphaned data", zap.String("dest", dest), zap.Stringer("piece", p.shard), zap.Error(err))
				}
			}
		}
		c.metrics.moveFailed.Inc()
		return kverrors.New(kverrors.MoveFailed, "%d of %d pieces failed moving to %s", failed, len(pieces), dest)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range pieces {
		c.cfg.Servers[p.source] = removeFromList(c.cfg.Servers[p.source], p.shard)
		c.cfg.Servers[dest] = append(c.cfg.Servers[dest], p.shard)
	}
	c.cfg.Servers[dest] = config.Coalesce(c.cfg.Servers[dest])
	c.cfg.Epoch++
	c.metrics.moveSucceeded.Inc()
	c.metrics.epoch.Set(float64(c.cfg.Epoch))
	c.log.Info("move committed", zap.String("dest", dest), zap.Int("pieces", len(pieces)), zap.Uint64("epoch", c.cfg.Epoch))
	return nil
}

// registerMove records requested as in-flight and returns its id, failing
// with MoveFailed if it overlaps a move already in flight.
func (c *Controller) registerMove(dest string, requested []shardkey.Shard) (uint64, error) {
	c.movesMu.Lock()
	defer c.movesMu.Unlock()
	for _, pm := range c.moves {
		for _, r := range requested {
			if slices.ContainsFunc(pm.shards, func(existing shardkey.Shard) bool {
				return shardkey.Overlaps(existing, r)
			}) {
				return 0, kverrors.New(kverrors.MoveFailed, "shard %v conflicts with a move already in flight to %s", r, pm.dest)
			}
		}
	}
	c.nextID++
	id := c.nextID
	c.moves[id] = pendingMove{dest: dest, shards: requested}
	return id, nil
}

func (c *Controller) releaseMove(id uint64) {
	c.movesMu.Lock()
	defer c.movesMu.Unlock()
	delete(c.moves, id)
}

// removeFromList returns shards with every symbol of target taken out,
// splitting a shard that only partly overlaps target.
func removeFromList(shards []shardkey.Shard, target shardkey.Shard) []shardkey.Shard {
	out := make([]shardkey.Shard, 0, len(shards))
	for _, s := range shards {
		if !shardkey.Overlaps(s, target) {
			out = append(out, s)
			continue
		}
		if s.Low < target.Low {
			out = append(out, shardkey.Shard{Low: s.Low, High: shardkey.SymbolAt(shardkey.SymbolIndex(target.Low) - 1)})
		}
		if s.High > target.High {
			out = append(out, shardkey.Shard{Low: shardkey.SymbolAt(shardkey.SymbolIndex(target.High) + 1), High: s.High})
		}
	}
	return out
}

// decompose computes the (source, piece) assignments that collectively
// cover requested, aligned to cfg's current ownership boundaries. It
// fails with MoveFailed if any symbol in requested is unowned. It does
// not check for a symbol owned by more than one server (the disjointness
// invariant rules that out); were two servers' shards to overlap, the
// owner recorded last while walking cfg.Servers wins. Pieces already
// owned by dest are omitted from the result as no-ops.
func decompose(cfg *config.Configuration, requested []shardkey.Shard, dest string) ([]piece, error) {
	owner := make([]string, shardkey.AlphabetSize)
	for addr, shards := range cfg.Servers {
		for _, s := range shards {
			for idx := shardkey.SymbolIndex(s.Low); idx <= shardkey.SymbolIndex(s.High); idx++ {
				owner[idx] = addr
			}
		}
	}

	var pieces []piece
	for _, r := range requested {
		lowIdx := shardkey.SymbolIndex(r.Low)
		highIdx := shardkey.SymbolIndex(r.High)
		if lowIdx < 0 || highIdx < 0 || lowIdx > highIdx {
			return nil, kverrors.New(kverrors.MoveFailed, "requested shard %v is not well-formed", r)
		}

		runStart := lowIdx
		runOwner := owner[lowIdx]
		for idx := lowIdx + 1; idx <= highIdx+1; idx++ {
			var cur string
			if idx <= highIdx {
				cur = owner[idx]
			}
			if idx > highIdx || cur != runOwner {
				if runOwner == "" {
					return nil, kverrors.New(kverrors.MoveFailed, "requested shard %v is not fully owned: symbol %c has no owner", r, shardkey.SymbolAt(runStart))
				}
				if runOwner != dest {
					pieces = append(pieces, piece{
						source: runOwner,
						shard:  shardkey.Shard{Low: shardkey.SymbolAt(runStart), High: shardkey.SymbolAt(idx - 1)},
					})
				}
				runStart = idx
				runOwner = cur
			}
		}
	}
	return pieces, nil
}
