package dfsrpc

// CallHeader precedes the procedure arguments in every request body.
type CallHeader struct {
	XID       uint32
	Program   uint32
	Procedure uint32
}

// ReplyHeader precedes the procedure results in every reply body. Status
// zero means success; any other value is a dfs.ErrorCode + 1 and Message
// carries the server-side error text.
type ReplyHeader struct {
	XID     uint32
	Status  uint32
	Message string
}

// StorageAddr announces the two endpoints of one storage server. The
// naming server builds its stub pair from these.
type StorageAddr struct {
	ClientAddr  string
	CommandAddr string
}

// Service bodies. Paths travel in their slash-delimited string form.

type LockArgs struct {
	Path      string
	Exclusive bool
}

type LockRes struct{}

type PathArgs struct {
	Path string
}

type IsDirectoryRes struct {
	IsDirectory bool
}

type ListRes struct {
	Names []string
}

type BoolRes struct {
	OK bool
}

type GetStorageRes struct {
	Addr StorageAddr
}

// Registration bodies.

type RegisterArgs struct {
	Addr  StorageAddr
	Files []string
}

type RegisterRes struct {
	Duplicates []string
}

// Storage bodies.

type SizeRes struct {
	Size int64
}

type ReadArgs struct {
	Path   string
	Offset int64
	Length int32
}

type ReadRes struct {
	Data []byte `xdr:"opaque"`
}

type WriteArgs struct {
	Path   string
	Offset int64
	Data   []byte `xdr:"opaque"`
}

type WriteRes struct{}

// Command bodies.

type CopyArgs struct {
	Path string
	// Source is the client endpoint of the storage server holding the
	// authoritative bytes.
	Source StorageAddr
}
