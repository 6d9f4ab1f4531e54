// Package storage implements a storage server: the component that holds
// actual file bytes under a local root directory and obeys the naming
// server's commands. It exposes the two capability surfaces of the
// system, dfs.Storage for clients and dfs.Command for the naming server.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/harshini-shah/dfs/internal/logger"
	"github.com/harshini-shah/dfs/pkg/dfs"
)

// copyChunkSize is the read granularity used when pulling a file from
// another storage server.
const copyChunkSize = 1 << 20

// Server serves file bytes from a local root directory.
//
// All operations are serialized by a single mutex: a storage server's
// working set is one directory tree on one disk, and the naming server
// already serializes the interesting concurrency path-by-path.
type Server struct {
	mu   sync.Mutex
	root string
}

// NewServer creates a storage server over the given local directory.
func NewServer(root string) (*Server, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("storage root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %s is not a directory", root)
	}
	return &Server{root: root}, nil
}

// Files lists every file under the root as tree paths, for registration
// with the naming server.
func (s *Server) Files() ([]dfs.Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var files []dfs.Path
	err := filepath.WalkDir(s.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		treePath, err := dfs.NewPath(strings.Split(relative, string(filepath.Separator))...)
		if err != nil {
			return err
		}
		files = append(files, treePath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list storage root: %w", err)
	}
	return files, nil
}

// localPath maps a tree path onto the local filesystem.
func (s *Server) localPath(path dfs.Path) string {
	return filepath.Join(append([]string{s.root}, path.Components()...)...)
}

// Size implements dfs.Storage.
func (s *Server) Size(ctx context.Context, file dfs.Path) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.localPath(file))
	if err != nil || info.IsDir() {
		return 0, dfs.NewPathError(dfs.ErrNotFound, "file does not exist or is not a regular file", file)
	}
	return info.Size(), nil
}

// Read implements dfs.Storage. The requested range must lie entirely
// within the file.
func (s *Server) Read(ctx context.Context, file dfs.Path, offset int64, length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	local := s.localPath(file)
	info, err := os.Stat(local)
	if err != nil || info.IsDir() {
		return nil, dfs.NewPathError(dfs.ErrNotFound, "file does not exist or is not a regular file", file)
	}
	if offset < 0 || length < 0 || offset+int64(length) > info.Size() {
		return nil, dfs.NewPathError(dfs.ErrInvalidArgument, "read range outside file bounds", file)
	}

	f, err := os.Open(local)
	if err != nil {
		return nil, dfs.NewPathError(dfs.ErrIO, err.Error(), file)
	}
	defer f.Close()

	data := make([]byte, length)
	if _, err := f.ReadAt(data, offset); err != nil && err != io.EOF {
		return nil, dfs.NewPathError(dfs.ErrIO, err.Error(), file)
	}
	return data, nil
}

// Write implements dfs.Storage, extending the file as needed.
func (s *Server) Write(ctx context.Context, file dfs.Path, offset int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(file, offset, data)
}

func (s *Server) writeLocked(file dfs.Path, offset int64, data []byte) error {
	local := s.localPath(file)
	info, err := os.Stat(local)
	if err != nil || info.IsDir() {
		return dfs.NewPathError(dfs.ErrNotFound, "file does not exist or is not a regular file", file)
	}
	if offset < 0 {
		return dfs.NewPathError(dfs.ErrInvalidArgument, "negative write offset", file)
	}

	f, err := os.OpenFile(local, os.O_WRONLY, 0)
	if err != nil {
		return dfs.NewPathError(dfs.ErrIO, err.Error(), file)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		return dfs.NewPathError(dfs.ErrIO, err.Error(), file)
	}
	return nil
}

// Create implements dfs.Command: it creates an empty file, along with any
// missing parent directories. Returns false if the path is the root or
// something already exists there.
func (s *Server) Create(ctx context.Context, file dfs.Path) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if file.IsRoot() {
		return false, nil
	}

	local := s.localPath(file)
	if _, err := os.Stat(local); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return false, dfs.NewPathError(dfs.ErrIO, err.Error(), file)
	}

	f, err := os.OpenFile(local, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false, dfs.NewPathError(dfs.ErrIO, err.Error(), file)
	}
	f.Close()
	return true, nil
}

// Delete implements dfs.Command: it removes a file or directory tree and
// prunes any parent directories the removal left empty.
func (s *Server) Delete(ctx context.Context, path dfs.Path) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path.IsRoot() {
		return false, nil
	}

	local := s.localPath(path)
	if _, err := os.Stat(local); err != nil {
		return false, nil
	}
	if err := os.RemoveAll(local); err != nil {
		return false, dfs.NewPathError(dfs.ErrIO, err.Error(), path)
	}

	s.pruneLocked(path)
	return true, nil
}

// pruneLocked removes directories left empty between path's parent and
// the root.
func (s *Server) pruneLocked(path dfs.Path) {
	current, err := path.Parent()
	for err == nil && !current.IsRoot() {
		local := s.localPath(current)
		entries, readErr := os.ReadDir(local)
		if readErr != nil || len(entries) > 0 {
			return
		}
		if removeErr := os.Remove(local); removeErr != nil {
			logger.Debug("could not prune %s: %v", local, removeErr)
			return
		}
		current, err = current.Parent()
	}
}

// Copy implements dfs.Command: it pulls the file's bytes from source and
// stores them locally, replacing any existing copy.
func (s *Server) Copy(ctx context.Context, file dfs.Path, source dfs.Storage) (bool, error) {
	size, err := source.Size(ctx, file)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local := s.localPath(file)
	if err := os.RemoveAll(local); err != nil {
		return false, dfs.NewPathError(dfs.ErrIO, err.Error(), file)
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return false, dfs.NewPathError(dfs.ErrIO, err.Error(), file)
	}
	f, err := os.OpenFile(local, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return false, dfs.NewPathError(dfs.ErrIO, err.Error(), file)
	}
	f.Close()

	for offset := int64(0); offset < size; offset += copyChunkSize {
		length := int(min(copyChunkSize, size-offset))
		data, err := source.Read(ctx, file, offset, length)
		if err != nil {
			return false, err
		}
		if err := s.writeLocked(file, offset, data); err != nil {
			return false, err
		}
	}
	return true, nil
}
