package naming

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/harshini-shah/dfs/pkg/dfs"
	"github.com/harshini-shah/dfs/pkg/metrics"
)

// lockManager implements the hierarchical multi-granularity reader/writer
// lock over the directory tree.
//
// Locking a path locks every strict ancestor in shared mode, top-down,
// then the target in the requested mode; release goes bottom-up. Because
// every acquire walks top-down and all waiting happens on single nodes,
// no cyclic wait can form between two live acquires.
//
// Per-node admission is FIFO with writer preference: a request that finds
// a non-empty queue, or that is incompatible with the current holders,
// enqueues and waits. A shared request therefore never overtakes a queued
// writer. When a writer releases, the head of the queue is either one
// writer, admitted alone, or a contiguous run of readers, admitted
// together.
type lockManager struct {
	tree    *tree
	metrics metrics.NamingMetrics
}

func newLockManager(t *tree, m metrics.NamingMetrics) *lockManager {
	return &lockManager{tree: t, metrics: m}
}

// chain returns the nodes from the root to path inclusive, or ErrNotFound
// if path is not in the tree.
func (lm *lockManager) chain(path dfs.Path) ([]*node, error) {
	lm.tree.mu.Lock()
	defer lm.tree.mu.Unlock()

	nodes := make([]*node, 0, len(path.Components())+1)
	current := lm.tree.root
	nodes = append(nodes, current)
	for _, component := range path.Components() {
		if current.kind == kindFile {
			return nil, dfs.NewPathError(dfs.ErrNotFound, "path crosses a file", path)
		}
		child, ok := current.children[component]
		if !ok {
			return nil, dfs.NewPathError(dfs.ErrNotFound, "path not found", path)
		}
		current = child
		nodes = append(nodes, current)
	}
	return nodes, nil
}

// acquire locks path in the requested mode, taking shared locks on every
// strict ancestor first. On failure at any step every lock taken so far is
// released in reverse order and the error is returned.
func (lm *lockManager) acquire(ctx context.Context, path dfs.Path, exclusive bool) error {
	nodes, err := lm.chain(path)
	if err != nil {
		return err
	}

	start := time.Now()
	for i, n := range nodes {
		nodeExclusive := exclusive && i == len(nodes)-1
		if err := n.acquireNode(ctx, nodeExclusive); err != nil {
			for j := i - 1; j >= 0; j-- {
				nodes[j].releaseNode(false)
			}
			return err
		}
	}
	lm.metrics.RecordLockWait(modeLabel(exclusive), time.Since(start))
	return nil
}

// release unlocks path: the target first in the requested mode, then every
// strict ancestor bottom-up in shared mode. Returns ErrInvalidArgument if
// the path is unknown or the target is not held in the requested mode.
func (lm *lockManager) release(path dfs.Path, exclusive bool) error {
	nodes, err := lm.chain(path)
	if err != nil {
		return dfs.NewPathError(dfs.ErrInvalidArgument, "cannot unlock unknown path", path)
	}

	target := nodes[len(nodes)-1]
	if !target.heldIn(exclusive) {
		return dfs.NewPathError(dfs.ErrInvalidArgument, "path is not locked in the requested mode", path)
	}

	target.releaseNode(exclusive)
	for i := len(nodes) - 2; i >= 0; i-- {
		nodes[i].releaseNode(false)
	}
	return nil
}

func modeLabel(exclusive bool) string {
	if exclusive {
		return "exclusive"
	}
	return "shared"
}

// compatibleLocked reports whether a request can be admitted against the
// current holders. Caller holds lockMu.
func (n *node) compatibleLocked(exclusive bool) bool {
	if exclusive {
		return n.sharedHolders == 0 && !n.exclusiveHeld
	}
	return !n.exclusiveHeld
}

// admitLocked marks the request as holding the lock. Caller holds lockMu.
func (n *node) admitLocked(exclusive bool) {
	if exclusive {
		n.exclusiveHeld = true
	} else {
		n.sharedHolders++
	}
}

// dispatchLocked grants queued requests from the head of the FIFO while
// they are compatible: one writer alone, or a contiguous run of readers.
// Caller holds lockMu.
func (n *node) dispatchLocked() {
	for len(n.waiters) > 0 {
		head := n.waiters[0]
		if !n.compatibleLocked(head.exclusive) {
			return
		}
		n.waiters = n.waiters[1:]
		n.admitLocked(head.exclusive)
		close(head.granted)
		if head.exclusive {
			return
		}
	}
}

// acquireNode blocks until the node grants the request, or until ctx is
// cancelled. A cancelled waiter removes its token, re-dispatches the node
// so that peers behind it are reconsidered, and reports ErrInterrupted.
func (n *node) acquireNode(ctx context.Context, exclusive bool) error {
	n.lockMu.Lock()
	if len(n.waiters) == 0 && n.compatibleLocked(exclusive) {
		n.admitLocked(exclusive)
		n.lockMu.Unlock()
		return nil
	}

	w := &waiter{
		id:        uuid.New(),
		exclusive: exclusive,
		granted:   make(chan struct{}),
	}
	n.waiters = append(n.waiters, w)
	n.lockMu.Unlock()

	select {
	case <-w.granted:
		return nil
	case <-ctx.Done():
	}

	n.lockMu.Lock()
	select {
	case <-w.granted:
		// The grant raced the cancellation; give the lock back so the
		// node's accounting stays balanced.
		n.releaseLocked(exclusive)
	default:
		n.removeWaiterLocked(w)
		n.dispatchLocked()
	}
	n.lockMu.Unlock()
	return dfs.NewError(dfs.ErrInterrupted, "lock acquisition interrupted: "+ctx.Err().Error())
}

// releaseNode drops one holder in the given mode and admits from the
// queue.
func (n *node) releaseNode(exclusive bool) {
	n.lockMu.Lock()
	n.releaseLocked(exclusive)
	n.lockMu.Unlock()
}

// releaseLocked drops one holder and re-dispatches. Caller holds lockMu.
func (n *node) releaseLocked(exclusive bool) {
	if exclusive {
		n.exclusiveHeld = false
	} else if n.sharedHolders > 0 {
		n.sharedHolders--
	}
	n.dispatchLocked()
}

// heldIn reports whether the node is currently held in the given mode.
func (n *node) heldIn(exclusive bool) bool {
	n.lockMu.Lock()
	defer n.lockMu.Unlock()
	if exclusive {
		return n.exclusiveHeld
	}
	return n.sharedHolders > 0
}

func (n *node) removeWaiterLocked(w *waiter) {
	for i, queued := range n.waiters {
		if queued.id == w.id {
			n.waiters = append(n.waiters[:i], n.waiters[i+1:]...)
			return
		}
	}
}
