// Package naming implements the metadata coordinator of the filesystem:
// the directory tree, the hierarchical lock manager, the background
// replication controller and the Service/Registration facade that clients
// and storage servers talk to.
//
// The naming server maintains the global directory tree. It does not store
// any file data - that is done by the storage servers. Its primary purpose
// is to map each path to the storage servers hosting the file's contents,
// and to serialize concurrent client access through path-scoped locks.
package naming

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/harshini-shah/dfs/internal/logger"
	"github.com/harshini-shah/dfs/pkg/dfs"
	"github.com/harshini-shah/dfs/pkg/metrics"
)

// ReplicaThreshold is the number of shared-lock acquisitions on a file
// that triggers one background replica grow.
const ReplicaThreshold = 2

// Config tunes a NamingServer.
type Config struct {
	// Replicator configures the background replication pool.
	Replicator ReplicatorConfig
}

// NamingServer is the metadata coordinator. One instance owns the whole
// directory tree and the registered storage server set; its lifecycle is
// bounded by the RPC endpoints that front it.
//
// Thread safety: all methods are safe for concurrent use. The tree has a
// coarse structural mutex, per-node lock state has per-node monitors, and
// the registration table is guarded by mu. No outbound RPC is ever made
// while a structural mutex is held.
type NamingServer struct {
	tree       *tree
	locks      *lockManager
	replicator *replicator
	metrics    metrics.NamingMetrics

	mu      sync.RWMutex
	servers []dfs.StubPair
	// commands maps a storage stub to its privileged command stub.
	commands map[dfs.Storage]dfs.Command
}

// New creates a naming server and starts its replication pool.
func New(config Config) *NamingServer {
	m := metrics.NewNamingMetrics()
	t := newTree()

	s := &NamingServer{
		tree:     t,
		locks:    newLockManager(t, m),
		metrics:  m,
		commands: make(map[dfs.Storage]dfs.Command),
	}
	s.replicator = newReplicator(s, config.Replicator, m)
	s.replicator.start(config.Replicator.Workers)
	return s
}

// Stop drains the replication pool. The server must not be used after
// Stop returns.
func (s *NamingServer) Stop() {
	s.replicator.stop()
}

// Lock locks path for shared or exclusive access, locking every ancestor
// in shared mode first.
//
// A granted shared lock on a file counts toward its read-hit bookkeeping
// and may schedule a background replica grow. A granted exclusive lock on
// a replicated file invalidates every replica beyond the first so writes
// cannot race stale copies; the full set is restored on Unlock.
func (s *NamingServer) Lock(ctx context.Context, path dfs.Path, exclusive bool) error {
	start := time.Now()
	err := s.lock(ctx, path, exclusive)
	s.metrics.RecordOperation("Lock", time.Since(start), err)
	return err
}

func (s *NamingServer) lock(ctx context.Context, path dfs.Path, exclusive bool) error {
	if err := s.locks.acquire(ctx, path, exclusive); err != nil {
		return err
	}

	if exclusive {
		s.invalidateStaleReplicas(ctx, path)
	} else {
		s.recordReadHit(path)
	}
	return nil
}

// Unlock releases a lock previously taken with Lock. For an exclusive
// lock on a file whose replicas were invalidated, the stale copies are
// re-materialized from a live replica before the locks are dropped.
func (s *NamingServer) Unlock(ctx context.Context, path dfs.Path, exclusive bool) error {
	start := time.Now()
	err := s.unlock(ctx, path, exclusive)
	s.metrics.RecordOperation("Unlock", time.Since(start), err)
	return err
}

func (s *NamingServer) unlock(ctx context.Context, path dfs.Path, exclusive bool) error {
	if exclusive {
		s.restoreReplicas(ctx, path)
	}
	return s.locks.release(path, exclusive)
}

// recordReadHit bumps the file's read counter and schedules a replica
// grow when it crosses the threshold.
func (s *NamingServer) recordReadHit(path dfs.Path) {
	s.tree.mu.Lock()
	n := s.tree.findLocked(path)
	if n == nil || n.kind != kindFile {
		s.tree.mu.Unlock()
		return
	}
	n.readHits++
	trigger := n.readHits >= ReplicaThreshold
	if trigger {
		n.readHits = 0
	}
	s.tree.mu.Unlock()

	if trigger {
		s.replicator.schedule(path)
	}
}

// invalidateStaleReplicas truncates a replicated file to a single
// authoritative replica and commands the others to drop their bytes. The
// replica list itself is retained so Unlock can restore it. Remote
// failures are logged and swallowed; the metadata is authoritative.
func (s *NamingServer) invalidateStaleReplicas(ctx context.Context, path dfs.Path) {
	s.tree.mu.Lock()
	n := s.tree.findLocked(path)
	if n == nil || n.kind != kindFile || n.liveReplicas <= 1 {
		s.tree.mu.Unlock()
		return
	}
	stale := make([]dfs.StubPair, n.liveReplicas-1)
	copy(stale, n.replicas[1:n.liveReplicas])
	n.liveReplicas = 1
	s.tree.mu.Unlock()

	s.metrics.RecordInvalidation(len(stale))
	for _, pair := range stale {
		if _, err := pair.Command.Delete(ctx, path); err != nil {
			logger.Warn("invalidating replica of %s failed: %v", path, err)
		}
	}
}

// restoreReplicas re-materializes replicas invalidated by an exclusive
// lock, copying from a randomly chosen live replica, and restores the
// live count. Runs before the exclusive lock is released so readers never
// observe a stale copy.
func (s *NamingServer) restoreReplicas(ctx context.Context, path dfs.Path) {
	s.tree.mu.Lock()
	n := s.tree.findLocked(path)
	if n == nil || n.kind != kindFile || n.liveReplicas >= len(n.replicas) {
		s.tree.mu.Unlock()
		return
	}
	stale := make([]dfs.StubPair, len(n.replicas)-n.liveReplicas)
	copy(stale, n.replicas[n.liveReplicas:])
	source := n.pickLiveReplica()
	n.liveReplicas = len(n.replicas)
	s.tree.mu.Unlock()

	for _, pair := range stale {
		if _, err := pair.Command.Copy(ctx, path, source.Storage); err != nil {
			logger.Warn("restoring replica of %s failed: %v", path, err)
		}
	}
}

// IsDirectory reports whether path names a directory. The root is always
// a directory.
func (s *NamingServer) IsDirectory(ctx context.Context, path dfs.Path) (bool, error) {
	start := time.Now()
	result, err := s.isDirectory(path)
	s.metrics.RecordOperation("IsDirectory", time.Since(start), err)
	return result, err
}

func (s *NamingServer) isDirectory(path dfs.Path) (bool, error) {
	n := s.tree.find(path)
	if n == nil {
		return false, dfs.NewPathError(dfs.ErrNotFound, "path not found", path)
	}
	return n.kind == kindDirectory, nil
}

// List returns the names of the entries in the given directory.
func (s *NamingServer) List(ctx context.Context, directory dfs.Path) ([]string, error) {
	start := time.Now()
	names, err := s.list(directory)
	s.metrics.RecordOperation("List", time.Since(start), err)
	return names, err
}

func (s *NamingServer) list(directory dfs.Path) ([]string, error) {
	s.tree.mu.Lock()
	defer s.tree.mu.Unlock()

	n := s.tree.findLocked(directory)
	if n == nil || n.kind != kindDirectory {
		return nil, dfs.NewPathError(dfs.ErrNotFound, "not a directory", directory)
	}
	return n.childNames(), nil
}

// CreateFile creates the given file if it does not exist. The selected
// storage server is commanded to create the empty file; if that remote
// call fails the metadata insertion is rolled back.
//
// Returns false when a file or directory with the given name already
// exists, or when the path is the root directory.
func (s *NamingServer) CreateFile(ctx context.Context, file dfs.Path) (bool, error) {
	start := time.Now()
	created, err := s.create(ctx, file, false)
	s.metrics.RecordOperation("CreateFile", time.Since(start), err)
	return created, err
}

// CreateDirectory creates the given directory if it does not exist. This
// is a pure metadata operation: no storage server is contacted.
func (s *NamingServer) CreateDirectory(ctx context.Context, directory dfs.Path) (bool, error) {
	start := time.Now()
	created, err := s.create(ctx, directory, true)
	s.metrics.RecordOperation("CreateDirectory", time.Since(start), err)
	return created, err
}

func (s *NamingServer) create(ctx context.Context, path dfs.Path, asDirectory bool) (bool, error) {
	if path.IsRoot() {
		return false, nil
	}
	if s.registeredCount() == 0 {
		return false, dfs.NewError(dfs.ErrInvalidState, "no storage servers registered")
	}

	parent, err := path.Parent()
	if err != nil {
		return false, err
	}
	parentNode := s.tree.find(parent)
	if parentNode == nil || parentNode.kind != kindDirectory {
		return false, dfs.NewPathError(dfs.ErrNotFound, "parent directory does not exist", path)
	}

	if err := s.locks.acquire(ctx, parent, true); err != nil {
		return false, err
	}
	defer func() {
		if err := s.locks.release(parent, true); err != nil {
			logger.Error("failed to release parent lock of %s: %v", path, err)
		}
	}()

	pair, ok := s.selectServer(parent)
	if !ok {
		return false, dfs.NewError(dfs.ErrInvalidState, "no storage servers registered")
	}

	s.tree.mu.Lock()
	if s.tree.lookupLocked(path) != nil {
		s.tree.mu.Unlock()
		return false, nil
	}
	n := s.tree.insertLocked(path, pair, asDirectory)
	s.tree.mu.Unlock()
	if n == nil {
		return false, nil
	}

	if !asDirectory {
		if _, err := pair.Command.Create(ctx, path); err != nil {
			// The storage server never saw the file; take the node back
			// out so metadata and bytes agree.
			s.tree.unlink(path)
			return false, dfs.NewPathError(dfs.ErrRPC, "storage server create failed: "+err.Error(), path)
		}
	}
	return true, nil
}

// selectServer picks the storage server for a new child of parent:
// uniformly at random from the parent's replica set when it has one, else
// from the global registered set.
func (s *NamingServer) selectServer(parent dfs.Path) (dfs.StubPair, bool) {
	s.tree.mu.Lock()
	parentNode := s.tree.findLocked(parent)
	if parentNode != nil && len(parentNode.replicas) > 0 {
		pair := parentNode.replicas[rand.Intn(len(parentNode.replicas))]
		s.tree.mu.Unlock()
		return pair, true
	}
	s.tree.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.servers) == 0 {
		return dfs.StubPair{}, false
	}
	return s.servers[rand.Intn(len(s.servers))], true
}

// Delete removes path and its whole subtree, commanding every replica of
// every removed file to drop its bytes. Returns false for the root
// directory.
func (s *NamingServer) Delete(ctx context.Context, path dfs.Path) (bool, error) {
	start := time.Now()
	deleted, err := s.delete(ctx, path)
	s.metrics.RecordOperation("Delete", time.Since(start), err)
	return deleted, err
}

func (s *NamingServer) delete(ctx context.Context, path dfs.Path) (bool, error) {
	if path.IsRoot() {
		return false, nil
	}
	if s.tree.find(path) == nil {
		return false, dfs.NewPathError(dfs.ErrNotFound, "path not found", path)
	}

	parent, err := path.Parent()
	if err != nil {
		return false, err
	}
	if err := s.locks.acquire(ctx, parent, true); err != nil {
		return false, err
	}
	defer func() {
		if err := s.locks.release(parent, true); err != nil {
			logger.Error("failed to release parent lock of %s: %v", path, err)
		}
	}()

	return s.tree.remove(ctx, path), nil
}

// GetStorage returns a storage stub serving file, chosen uniformly at
// random from its live replicas.
func (s *NamingServer) GetStorage(ctx context.Context, file dfs.Path) (dfs.Storage, error) {
	start := time.Now()
	stub, err := s.getStorage(file)
	s.metrics.RecordOperation("GetStorage", time.Since(start), err)
	return stub, err
}

func (s *NamingServer) getStorage(file dfs.Path) (dfs.Storage, error) {
	s.tree.mu.Lock()
	defer s.tree.mu.Unlock()

	n := s.tree.findLocked(file)
	if n == nil {
		return nil, dfs.NewPathError(dfs.ErrNotFound, "file not found", file)
	}
	if n.kind != kindFile {
		return nil, dfs.NewPathError(dfs.ErrNotFound, "path is a directory, not a file", file)
	}
	return n.pickLiveReplica().Storage, nil
}

// Register merges a storage server's local inventory into the directory
// tree and records its stubs. The returned list names the files the
// server must delete locally because the tree already knows them.
//
// Registration takes an exclusive lock on the root so it is serialized
// with every other tree mutation.
func (s *NamingServer) Register(ctx context.Context, storage dfs.Storage, command dfs.Command, files []dfs.Path) ([]dfs.Path, error) {
	start := time.Now()
	duplicates, err := s.register(ctx, storage, command, files)
	s.metrics.RecordOperation("Register", time.Since(start), err)
	return duplicates, err
}

func (s *NamingServer) register(ctx context.Context, storage dfs.Storage, command dfs.Command, files []dfs.Path) ([]dfs.Path, error) {
	if storage == nil || command == nil || files == nil {
		return nil, dfs.NewError(dfs.ErrInvalidArgument, "storage stub, command stub and file list are required")
	}
	if s.isRegistered(storage) {
		return nil, dfs.NewError(dfs.ErrAlreadyRegistered, "storage server is already registered")
	}

	if err := s.locks.acquire(ctx, dfs.Root(), true); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.locks.release(dfs.Root(), true); err != nil {
			logger.Error("failed to release root lock after register: %v", err)
		}
	}()

	s.mu.Lock()
	if _, exists := s.commands[storage]; exists {
		s.mu.Unlock()
		return nil, dfs.NewError(dfs.ErrAlreadyRegistered, "storage server is already registered")
	}
	pair := dfs.StubPair{Storage: storage, Command: command}
	s.servers = append(s.servers, pair)
	s.commands[storage] = command
	count := len(s.servers)
	s.mu.Unlock()

	duplicates := s.tree.mergeRegister(files, pair)

	s.metrics.SetRegisteredServers(count)
	logger.Info("registered storage server %d with %d files (%d duplicates)",
		count, len(files), len(duplicates))
	return duplicates, nil
}

func (s *NamingServer) isRegistered(storage dfs.Storage) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.commands[storage]
	return exists
}

func (s *NamingServer) registeredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.servers)
}

// registeredPairs returns a snapshot of the registered stub pairs in
// registration order.
func (s *NamingServer) registeredPairs() []dfs.StubPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pairs := make([]dfs.StubPair, len(s.servers))
	copy(pairs, s.servers)
	return pairs
}
