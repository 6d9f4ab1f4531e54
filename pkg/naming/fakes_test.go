package naming

import (
	"context"
	"sync"

	"github.com/harshini-shah/dfs/pkg/dfs"
)

// fakeStorage is an in-process dfs.Storage used as a stub identity in
// tests. The naming core never reads bytes itself, so the data methods
// just satisfy the interface.
type fakeStorage struct {
	name string
}

func (f *fakeStorage) Size(ctx context.Context, file dfs.Path) (int64, error) {
	return 0, nil
}

func (f *fakeStorage) Read(ctx context.Context, file dfs.Path, offset int64, length int) ([]byte, error) {
	return nil, nil
}

func (f *fakeStorage) Write(ctx context.Context, file dfs.Path, offset int64, data []byte) error {
	return nil
}

// fakeCommand records every command the naming server issues so tests
// can assert on the remote traffic.
type fakeCommand struct {
	mu      sync.Mutex
	name    string
	creates []string
	deletes []string
	copies  []string

	failCreate bool
	failCopy   bool
}

func (f *fakeCommand) Create(ctx context.Context, file dfs.Path) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return false, dfs.NewPathError(dfs.ErrRPC, "create refused", file)
	}
	f.creates = append(f.creates, file.String())
	return true, nil
}

func (f *fakeCommand) Delete(ctx context.Context, path dfs.Path) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, path.String())
	return true, nil
}

func (f *fakeCommand) Copy(ctx context.Context, file dfs.Path, source dfs.Storage) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCopy {
		return false, dfs.NewPathError(dfs.ErrRPC, "copy refused", file)
	}
	f.copies = append(f.copies, file.String())
	return true, nil
}

func (f *fakeCommand) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func (f *fakeCommand) copied() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.copies...)
}

func (f *fakeCommand) created() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.creates...)
}

// fakeServer bundles one fake storage server's stub pair.
type fakeServer struct {
	storage *fakeStorage
	command *fakeCommand
}

func newFakeServer(name string) *fakeServer {
	return &fakeServer{
		storage: &fakeStorage{name: name},
		command: &fakeCommand{name: name},
	}
}

func (f *fakeServer) pair() dfs.StubPair {
	return dfs.StubPair{Storage: f.storage, Command: f.command}
}

func mustPaths(raw ...string) []dfs.Path {
	paths := make([]dfs.Path, len(raw))
	for i, r := range raw {
		paths[i] = dfs.MustParsePath(r)
	}
	return paths
}
