package naming

import (
	"context"
	"sort"
	"sync"

	"github.com/harshini-shah/dfs/internal/logger"
	"github.com/harshini-shah/dfs/pkg/dfs"
)

// tree is the in-memory directory trie.
//
// A single coarse mutex guards all structural mutations. Structural
// operations are short and the semantic serialization of concurrent
// clients is done by the hierarchical locks on the nodes themselves, so
// finer-grained locking buys nothing here. The mutex is never held across
// an outbound RPC.
type tree struct {
	mu   sync.Mutex
	root *node
}

func newTree() *tree {
	return &tree{
		root: newNode(kindDirectory, dfs.Root(), "", nil),
	}
}

// lookupLocked walks from the root toward path. If an intermediate
// component names a file, the walk stops early and returns that file node
// so the caller can reject the path. Returns nil if a component is
// missing. Caller holds mu.
func (t *tree) lookupLocked(path dfs.Path) *node {
	current := t.root
	for _, component := range path.Components() {
		if current.kind == kindFile {
			return current
		}
		child, ok := current.children[component]
		if !ok {
			return nil
		}
		current = child
	}
	return current
}

// findLocked is lookupLocked restricted to exact matches: the returned
// node's path is the queried path. Caller holds mu.
func (t *tree) findLocked(path dfs.Path) *node {
	n := t.lookupLocked(path)
	if n == nil || !n.path.Equal(path) {
		return nil
	}
	return n
}

// find returns the node at exactly path, or nil.
func (t *tree) find(path dfs.Path) *node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.findLocked(path)
}

// insert adds path to the tree, creating missing intermediate directories
// along the chain. The leaf becomes a file unless asDirectory is set. If
// the leaf already exists, the stub pair is added to its replica list
// (duplicates by stub identity are dropped). If the walk meets a file
// where a directory is needed the insert fails silently: a file never
// becomes an implicit directory.
//
// Returns the leaf node, or nil when the insert was rejected.
func (t *tree) insert(path dfs.Path, pair dfs.StubPair, asDirectory bool) *node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(path, pair, asDirectory)
}

func (t *tree) insertLocked(path dfs.Path, pair dfs.StubPair, asDirectory bool) *node {
	components := path.Components()
	current := t.root
	prefix := dfs.Root()

	for i, component := range components {
		if current.kind == kindFile {
			return nil
		}
		prefix, _ = prefix.Append(component)

		child, ok := current.children[component]
		if !ok {
			kind := kindDirectory
			if i == len(components)-1 && !asDirectory {
				kind = kindFile
			}
			child = newNode(kind, prefix, component, current)
			// Directories keep a single placeholder pair so that later
			// child placement can follow the parent's server.
			child.replicas = []dfs.StubPair{pair}
			child.liveReplicas = 1
			current.children[component] = child
		} else if i == len(components)-1 {
			if child.kind == kindFile && !asDirectory {
				child.addReplica(pair)
			} else if child.kind == kindFile || !asDirectory {
				// Existing leaf of the other kind: no tree change.
				return nil
			}
		}
		current = child
	}

	return current
}

// unlink detaches the node at path from its parent and returns every file
// node of the removed subtree (the target included if it is a file)
// together with the replicas that must be commanded to drop their bytes.
// The caller issues those remote deletes after releasing the tree mutex.
func (t *tree) unlink(path dfs.Path) ([]*node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.findLocked(path)
	if target == nil || target.parent == nil {
		return nil, false
	}

	var files []*node
	if target.kind == kindFile {
		files = append(files, target)
	} else {
		for _, descendant := range target.descendants(nil) {
			if descendant.kind == kindFile {
				files = append(files, descendant)
			}
		}
	}

	delete(target.parent.children, target.name)
	target.parent = nil
	return files, true
}

// remove deletes the subtree at path and commands every replica of every
// removed file to drop its local copy. Remote failures are logged and do
// not stop the propagation: the tree's metadata is authoritative.
func (t *tree) remove(ctx context.Context, path dfs.Path) bool {
	files, ok := t.unlink(path)
	if !ok {
		return false
	}

	for _, file := range files {
		for _, pair := range file.replicas {
			if _, err := pair.Command.Delete(ctx, file.path); err != nil {
				logger.Warn("delete of %s on storage server failed: %v", file.path, err)
			}
		}
	}
	return true
}

// mergeRegister merges a registering storage server's inventory into the
// tree. Paths already present as file nodes are reported back as
// duplicates so the server can reclaim the local bytes; everything else is
// inserted as a file owned by the new server.
func (t *tree) mergeRegister(paths []dfs.Path, pair dfs.StubPair) []dfs.Path {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Descending path order: every path sorts after its ancestors, so a
	// registered file creates its implicit parent directories before a
	// shorter prefix can claim the same name as a file.
	ordered := make([]dfs.Path, len(paths))
	copy(ordered, paths)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Compare(ordered[j]) > 0 })

	var duplicates []dfs.Path
	for _, path := range ordered {
		if path.IsRoot() {
			continue
		}
		if t.lookupLocked(path) != nil {
			duplicates = append(duplicates, path)
			continue
		}
		t.insertLocked(path, pair, false)
	}
	return duplicates
}
