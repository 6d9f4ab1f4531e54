package naming

import (
	"context"
	"sync"

	"github.com/harshini-shah/dfs/internal/logger"
	"github.com/harshini-shah/dfs/pkg/dfs"
	"github.com/harshini-shah/dfs/pkg/metrics"
)

// ReplicatorConfig tunes the background replication worker pool.
type ReplicatorConfig struct {
	// Workers is the number of concurrent replication tasks (default: 4)
	Workers int

	// QueueDepth bounds the pending task queue (default: 64). Enqueueing
	// on a full queue drops the task: read-triggered growth is advisory
	// and the next burst of reads re-triggers it.
	QueueDepth int
}

// replicator grows replicas of hot files in the background.
//
// Each task owns a single path. It re-enters the lock manager as a normal
// client (shared mode), copies the file onto a storage server that does
// not hold it yet, and records the new replica. Any remote error logs and
// aborts the grow; no partial state is recorded.
type replicator struct {
	server  *NamingServer
	metrics metrics.NamingMetrics

	tasks  chan dfs.Path
	stopCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newReplicator(server *NamingServer, config ReplicatorConfig, m metrics.NamingMetrics) *replicator {
	if config.QueueDepth <= 0 {
		config.QueueDepth = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &replicator{
		server:  server,
		metrics: m,
		tasks:   make(chan dfs.Path, config.QueueDepth),
		stopCh:  make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// start launches the worker pool.
func (r *replicator) start(workers int) {
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
}

// stop signals the workers, interrupts any task blocked in the lock
// manager, and waits for the pool to drain.
func (r *replicator) stop() {
	close(r.stopCh)
	r.cancel()
	r.wg.Wait()
}

// schedule enqueues a replica-grow task for path. Drops the task when the
// queue is full or the pool is stopped.
func (r *replicator) schedule(path dfs.Path) {
	select {
	case r.tasks <- path:
	case <-r.stopCh:
	default:
		logger.Warn("replication queue full, dropping grow task for %s", path)
	}
}

func (r *replicator) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopCh:
			return
		case path := <-r.tasks:
			err := r.replicate(r.ctx, path)
			r.metrics.RecordReplication(err)
			if err != nil {
				logger.Warn("replication of %s aborted: %v", path, err)
			}
		}
	}
}

// replicate performs one replica grow under a shared lock on path.
func (r *replicator) replicate(ctx context.Context, path dfs.Path) error {
	lm := r.server.locks
	if err := lm.acquire(ctx, path, false); err != nil {
		return err
	}
	defer func() {
		if err := lm.release(path, false); err != nil {
			logger.Error("replicator failed to release %s: %v", path, err)
		}
	}()

	target, source, ok := r.pickTarget(path)
	if !ok {
		logger.Debug("%s is fully replicated", path)
		return nil
	}

	if _, err := target.Command.Copy(ctx, path, source.Storage); err != nil {
		return err
	}

	r.commit(path, target)
	logger.Info("grew replica of %s", path)
	return nil
}

// pickTarget selects a registered storage server that does not yet hold
// path, plus a live replica to copy from. ok is false when the file is
// already on every registered server or the node vanished.
func (r *replicator) pickTarget(path dfs.Path) (target, source dfs.StubPair, ok bool) {
	t := r.server.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.findLocked(path)
	if n == nil || n.kind != kindFile || n.liveReplicas == 0 {
		return dfs.StubPair{}, dfs.StubPair{}, false
	}

	for _, candidate := range r.server.registeredPairs() {
		if !n.hasReplicaOn(candidate.Storage) {
			return candidate, n.pickLiveReplica(), true
		}
	}
	return dfs.StubPair{}, dfs.StubPair{}, false
}

// commit records the freshly copied replica on the node.
func (r *replicator) commit(path dfs.Path, target dfs.StubPair) {
	t := r.server.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := t.findLocked(path); n != nil && n.kind == kindFile {
		n.addReplica(target)
	}
}
