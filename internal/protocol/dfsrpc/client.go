package dfsrpc

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/harshini-shah/dfs/pkg/dfs"
)

var xidCounter uint32

// stubCache interns one stub per remote address so that stub identity
// matches server identity: the naming core deduplicates replicas and
// detects re-registration by comparing stub pointers.
var stubCache = struct {
	mu      sync.Mutex
	storage map[string]*StorageClient
	command map[string]*CommandClient
}{
	storage: make(map[string]*StorageClient),
	command: make(map[string]*CommandClient),
}

// StorageStubFor returns the canonical storage stub for addr.
func StorageStubFor(addr string) *StorageClient {
	stubCache.mu.Lock()
	defer stubCache.mu.Unlock()
	stub, ok := stubCache.storage[addr]
	if !ok {
		stub = NewStorageClient(addr)
		stubCache.storage[addr] = stub
	}
	return stub
}

// CommandStubFor returns the canonical command stub for addr.
func CommandStubFor(addr string) *CommandClient {
	stubCache.mu.Lock()
	defer stubCache.mu.Unlock()
	stub, ok := stubCache.command[addr]
	if !ok {
		stub = NewCommandClient(addr)
		stubCache.command[addr] = stub
	}
	return stub
}

// call performs one remote procedure call against addr: dial, send one
// framed request, read one framed reply. Transport failures surface as
// dfs.ErrRPC; server-side failures are rehydrated to the original error
// code.
func call(ctx context.Context, addr string, program, procedure uint32, args, result any) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return dfs.NewError(dfs.ErrRPC, "dial "+addr+": "+err.Error())
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return dfs.NewError(dfs.ErrRPC, "set deadline: "+err.Error())
		}
	}

	header := CallHeader{
		XID:       atomic.AddUint32(&xidCounter, 1),
		Program:   program,
		Procedure: procedure,
	}
	request, err := EncodeCall(header, args)
	if err != nil {
		return dfs.NewError(dfs.ErrRPC, "encode call: "+err.Error())
	}
	if err := WriteMessage(conn, request); err != nil {
		return dfs.NewError(dfs.ErrRPC, "send call: "+err.Error())
	}

	message, err := ReadMessage(conn)
	if err != nil {
		return dfs.NewError(dfs.ErrRPC, "read reply: "+err.Error())
	}
	_, body, err := DecodeReply(message)
	if err != nil {
		if _, ok := dfs.CodeOf(err); ok {
			return err
		}
		return dfs.NewError(dfs.ErrRPC, "decode reply: "+err.Error())
	}
	if result != nil {
		if err := DecodeArgs(body, result); err != nil {
			return dfs.NewError(dfs.ErrRPC, "decode reply: "+err.Error())
		}
	}
	return nil
}

// ServiceClient is the client-side stub of the naming server's Service
// interface.
type ServiceClient struct {
	addr string
}

// NewServiceClient builds a stub for the Service endpoint at addr.
func NewServiceClient(addr string) *ServiceClient {
	return &ServiceClient{addr: addr}
}

func (c *ServiceClient) Lock(ctx context.Context, path dfs.Path, exclusive bool) error {
	return call(ctx, c.addr, ProgramService, ServiceLock,
		&LockArgs{Path: path.String(), Exclusive: exclusive}, nil)
}

func (c *ServiceClient) Unlock(ctx context.Context, path dfs.Path, exclusive bool) error {
	return call(ctx, c.addr, ProgramService, ServiceUnlock,
		&LockArgs{Path: path.String(), Exclusive: exclusive}, nil)
}

func (c *ServiceClient) IsDirectory(ctx context.Context, path dfs.Path) (bool, error) {
	var res IsDirectoryRes
	err := call(ctx, c.addr, ProgramService, ServiceIsDirectory,
		&PathArgs{Path: path.String()}, &res)
	return res.IsDirectory, err
}

func (c *ServiceClient) List(ctx context.Context, directory dfs.Path) ([]string, error) {
	var res ListRes
	err := call(ctx, c.addr, ProgramService, ServiceList,
		&PathArgs{Path: directory.String()}, &res)
	return res.Names, err
}

func (c *ServiceClient) CreateFile(ctx context.Context, file dfs.Path) (bool, error) {
	var res BoolRes
	err := call(ctx, c.addr, ProgramService, ServiceCreateFile,
		&PathArgs{Path: file.String()}, &res)
	return res.OK, err
}

func (c *ServiceClient) CreateDirectory(ctx context.Context, directory dfs.Path) (bool, error) {
	var res BoolRes
	err := call(ctx, c.addr, ProgramService, ServiceCreateDirectory,
		&PathArgs{Path: directory.String()}, &res)
	return res.OK, err
}

func (c *ServiceClient) Delete(ctx context.Context, path dfs.Path) (bool, error) {
	var res BoolRes
	err := call(ctx, c.addr, ProgramService, ServiceDelete,
		&PathArgs{Path: path.String()}, &res)
	return res.OK, err
}

func (c *ServiceClient) GetStorage(ctx context.Context, file dfs.Path) (*StorageClient, error) {
	var res GetStorageRes
	if err := call(ctx, c.addr, ProgramService, ServiceGetStorage,
		&PathArgs{Path: file.String()}, &res); err != nil {
		return nil, err
	}
	return NewStorageClient(res.Addr.ClientAddr), nil
}

// RegistrationClient is the storage-server-side stub of the naming
// server's Registration interface.
type RegistrationClient struct {
	addr string
}

// NewRegistrationClient builds a stub for the Registration endpoint at
// addr.
func NewRegistrationClient(addr string) *RegistrationClient {
	return &RegistrationClient{addr: addr}
}

// Register announces a storage server's endpoints and inventory and
// returns the paths the server must delete locally.
func (c *RegistrationClient) Register(ctx context.Context, storageAddr StorageAddr, files []dfs.Path) ([]dfs.Path, error) {
	args := RegisterArgs{Addr: storageAddr, Files: make([]string, len(files))}
	for i, file := range files {
		args.Files[i] = file.String()
	}

	var res RegisterRes
	if err := call(ctx, c.addr, ProgramRegistration, RegistrationRegister, &args, &res); err != nil {
		return nil, err
	}

	duplicates := make([]dfs.Path, 0, len(res.Duplicates))
	for _, raw := range res.Duplicates {
		path, err := dfs.ParsePath(raw)
		if err != nil {
			return nil, dfs.NewError(dfs.ErrRPC, "malformed duplicate path in reply: "+raw)
		}
		duplicates = append(duplicates, path)
	}
	return duplicates, nil
}

// StorageClient implements dfs.Storage against a remote storage server's
// client endpoint.
type StorageClient struct {
	addr string
}

// NewStorageClient builds a stub for the storage client endpoint at addr.
func NewStorageClient(addr string) *StorageClient {
	return &StorageClient{addr: addr}
}

// Addr returns the remote endpoint address the stub talks to.
func (c *StorageClient) Addr() string {
	return c.addr
}

func (c *StorageClient) Size(ctx context.Context, file dfs.Path) (int64, error) {
	var res SizeRes
	err := call(ctx, c.addr, ProgramStorage, StorageSize, &PathArgs{Path: file.String()}, &res)
	return res.Size, err
}

func (c *StorageClient) Read(ctx context.Context, file dfs.Path, offset int64, length int) ([]byte, error) {
	var res ReadRes
	err := call(ctx, c.addr, ProgramStorage, StorageRead,
		&ReadArgs{Path: file.String(), Offset: offset, Length: int32(length)}, &res)
	return res.Data, err
}

func (c *StorageClient) Write(ctx context.Context, file dfs.Path, offset int64, data []byte) error {
	return call(ctx, c.addr, ProgramStorage, StorageWrite,
		&WriteArgs{Path: file.String(), Offset: offset, Data: data}, nil)
}

// CommandClient implements dfs.Command against a remote storage server's
// command endpoint.
type CommandClient struct {
	addr string
}

// NewCommandClient builds a stub for the storage command endpoint at
// addr.
func NewCommandClient(addr string) *CommandClient {
	return &CommandClient{addr: addr}
}

// Addr returns the remote endpoint address the stub talks to.
func (c *CommandClient) Addr() string {
	return c.addr
}

func (c *CommandClient) Create(ctx context.Context, file dfs.Path) (bool, error) {
	var res BoolRes
	err := call(ctx, c.addr, ProgramCommand, CommandCreate, &PathArgs{Path: file.String()}, &res)
	return res.OK, err
}

func (c *CommandClient) Delete(ctx context.Context, path dfs.Path) (bool, error) {
	var res BoolRes
	err := call(ctx, c.addr, ProgramCommand, CommandDelete, &PathArgs{Path: path.String()}, &res)
	return res.OK, err
}

func (c *CommandClient) Copy(ctx context.Context, file dfs.Path, source dfs.Storage) (bool, error) {
	remote, ok := source.(*StorageClient)
	if !ok {
		return false, dfs.NewError(dfs.ErrInvalidArgument, "copy source is not a remote storage stub")
	}

	var res BoolRes
	err := call(ctx, c.addr, ProgramCommand, CommandCopy,
		&CopyArgs{Path: file.String(), Source: StorageAddr{ClientAddr: remote.Addr()}}, &res)
	return res.OK, err
}
