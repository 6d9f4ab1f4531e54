package dfs

import "context"

// Storage is the client-facing capability handle of one storage server.
// Clients obtain a Storage stub from the naming server and use it to read
// and write file bytes directly.
type Storage interface {
	// Size returns the length of the file in bytes.
	Size(ctx context.Context, file Path) (int64, error)

	// Read returns length bytes of the file starting at offset. The range
	// must lie entirely within the file.
	Read(ctx context.Context, file Path, offset int64, length int) ([]byte, error)

	// Write writes data to the file starting at offset, extending the file
	// if needed.
	Write(ctx context.Context, file Path, offset int64, data []byte) error
}

// Command is the privileged capability handle of one storage server. Only
// the naming server holds Command stubs; it uses them to mutate the
// server's local file store when the directory tree changes.
type Command interface {
	// Create creates an empty file, creating any missing parent
	// directories. It returns false if the file already exists or the path
	// is the root directory.
	Create(ctx context.Context, file Path) (bool, error)

	// Delete removes a file or directory tree. Parent directories left
	// empty by the removal are pruned. It returns false if the path does
	// not exist or is the root directory.
	Delete(ctx context.Context, path Path) (bool, error)

	// Copy fetches the file's bytes from source and stores them locally,
	// replacing any existing copy.
	Copy(ctx context.Context, file Path, source Storage) (bool, error)
}

// StubPair couples the two capability handles of one storage server. The
// naming server stores a StubPair per replica.
type StubPair struct {
	Storage Storage
	Command Command
}
