package naming

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/harshini-shah/dfs/pkg/dfs"
)

type nodeKind int

const (
	kindFile nodeKind = iota
	kindDirectory
)

// node is one entry in the directory tree.
//
// Structural fields (parent, children, replicas, liveReplicas, readHits)
// are guarded by the owning tree's mutex. Lock-state fields (sharedHolders,
// exclusiveHeld, waiters) are guarded by lockMu and are touched only by
// the acquire/release code in lock.go.
type node struct {
	kind   nodeKind
	name   string
	path   dfs.Path
	parent *node

	// children maps component name to child node. Nil for files.
	children map[string]*node

	// replicas lists the storage servers holding this entry. For files the
	// first liveReplicas entries are authoritative; the tail is retained
	// across write-triggered invalidation so the originals can be restored
	// on unlock. Directories carry at most a single registration
	// placeholder used for child placement.
	replicas     []dfs.StubPair
	liveReplicas int

	// readHits counts successful shared-lock acquisitions since the last
	// replica grow.
	readHits int

	lockMu        sync.Mutex
	sharedHolders int
	exclusiveHeld bool
	waiters       []*waiter
}

// waiter is one queued lock request on a node. The FIFO position in
// node.waiters decides admission order; granted is closed exactly once,
// under lockMu, when the request is admitted.
type waiter struct {
	id        uuid.UUID
	exclusive bool
	granted   chan struct{}
}

func newNode(kind nodeKind, path dfs.Path, name string, parent *node) *node {
	n := &node{
		kind:   kind,
		name:   name,
		path:   path,
		parent: parent,
	}
	if kind == kindDirectory {
		n.children = make(map[string]*node)
	}
	return n
}

// addReplica records a stub pair on the node, dropping duplicates by stub
// identity. Caller holds the tree mutex.
func (n *node) addReplica(pair dfs.StubPair) {
	for _, existing := range n.replicas {
		if existing.Storage == pair.Storage {
			return
		}
	}
	n.replicas = append(n.replicas, pair)
	n.liveReplicas++
}

// hasReplicaOn reports whether the given storage server already appears in
// the node's replica list, live or stale. Caller holds the tree mutex.
func (n *node) hasReplicaOn(storage dfs.Storage) bool {
	for _, pair := range n.replicas {
		if pair.Storage == storage {
			return true
		}
	}
	return false
}

// pickLiveReplica returns one of the authoritative replicas uniformly at
// random. Caller holds the tree mutex and guarantees liveReplicas >= 1.
func (n *node) pickLiveReplica() dfs.StubPair {
	return n.replicas[rand.Intn(n.liveReplicas)]
}

// childNames returns the names of all children. Caller holds the tree
// mutex.
func (n *node) childNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	return names
}

// descendants appends every node below n (excluding n itself) to out,
// parents before children. Caller holds the tree mutex.
func (n *node) descendants(out []*node) []*node {
	for _, child := range n.children {
		out = append(out, child)
		if child.kind == kindDirectory {
			out = child.descendants(out)
		}
	}
	return out
}
