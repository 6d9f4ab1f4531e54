package dfsrpc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/harshini-shah/dfs/pkg/dfs"
	"github.com/harshini-shah/dfs/pkg/naming"
)

func errUnknownProcedure(procedure uint32) error {
	return dfs.NewError(dfs.ErrRPC, fmt.Sprintf("unknown procedure %d", procedure))
}

func parsePathArg(args *bytes.Reader) (dfs.Path, error) {
	var pathArgs PathArgs
	if err := DecodeArgs(args, &pathArgs); err != nil {
		return dfs.Path{}, dfs.NewError(dfs.ErrRPC, err.Error())
	}
	return dfs.ParsePath(pathArgs.Path)
}

// ServiceHandler dispatches Service program calls onto the naming server.
// The returned function plugs into an internal/server Endpoint.
func ServiceHandler(ns *naming.NamingServer) func(ctx context.Context, procedure uint32, args *bytes.Reader) (any, error) {
	return func(ctx context.Context, procedure uint32, args *bytes.Reader) (any, error) {
		switch procedure {
		case ServiceLock, ServiceUnlock:
			var lockArgs LockArgs
			if err := DecodeArgs(args, &lockArgs); err != nil {
				return nil, dfs.NewError(dfs.ErrRPC, err.Error())
			}
			path, err := dfs.ParsePath(lockArgs.Path)
			if err != nil {
				return nil, err
			}
			if procedure == ServiceLock {
				return &LockRes{}, ns.Lock(ctx, path, lockArgs.Exclusive)
			}
			return &LockRes{}, ns.Unlock(ctx, path, lockArgs.Exclusive)

		case ServiceIsDirectory:
			path, err := parsePathArg(args)
			if err != nil {
				return nil, err
			}
			isDir, err := ns.IsDirectory(ctx, path)
			return &IsDirectoryRes{IsDirectory: isDir}, err

		case ServiceList:
			path, err := parsePathArg(args)
			if err != nil {
				return nil, err
			}
			names, err := ns.List(ctx, path)
			return &ListRes{Names: names}, err

		case ServiceCreateFile:
			path, err := parsePathArg(args)
			if err != nil {
				return nil, err
			}
			created, err := ns.CreateFile(ctx, path)
			return &BoolRes{OK: created}, err

		case ServiceCreateDirectory:
			path, err := parsePathArg(args)
			if err != nil {
				return nil, err
			}
			created, err := ns.CreateDirectory(ctx, path)
			return &BoolRes{OK: created}, err

		case ServiceDelete:
			path, err := parsePathArg(args)
			if err != nil {
				return nil, err
			}
			deleted, err := ns.Delete(ctx, path)
			return &BoolRes{OK: deleted}, err

		case ServiceGetStorage:
			path, err := parsePathArg(args)
			if err != nil {
				return nil, err
			}
			storage, err := ns.GetStorage(ctx, path)
			if err != nil {
				return nil, err
			}
			stub, ok := storage.(*StorageClient)
			if !ok {
				return nil, dfs.NewError(dfs.ErrRPC, "storage stub has no remote address")
			}
			return &GetStorageRes{Addr: StorageAddr{ClientAddr: stub.Addr()}}, nil

		default:
			return nil, errUnknownProcedure(procedure)
		}
	}
}

// RegistrationHandler dispatches Registration program calls onto the
// naming server, building remote stubs from the announced addresses.
func RegistrationHandler(ns *naming.NamingServer) func(ctx context.Context, procedure uint32, args *bytes.Reader) (any, error) {
	return func(ctx context.Context, procedure uint32, args *bytes.Reader) (any, error) {
		if procedure != RegistrationRegister {
			return nil, errUnknownProcedure(procedure)
		}

		var registerArgs RegisterArgs
		if err := DecodeArgs(args, &registerArgs); err != nil {
			return nil, dfs.NewError(dfs.ErrRPC, err.Error())
		}
		if registerArgs.Addr.ClientAddr == "" || registerArgs.Addr.CommandAddr == "" {
			return nil, dfs.NewError(dfs.ErrInvalidArgument, "storage server addresses are required")
		}

		files := make([]dfs.Path, 0, len(registerArgs.Files))
		for _, raw := range registerArgs.Files {
			path, err := dfs.ParsePath(raw)
			if err != nil {
				return nil, err
			}
			files = append(files, path)
		}

		storage := StorageStubFor(registerArgs.Addr.ClientAddr)
		command := CommandStubFor(registerArgs.Addr.CommandAddr)
		duplicates, err := ns.Register(ctx, storage, command, files)
		if err != nil {
			return nil, err
		}

		res := &RegisterRes{Duplicates: make([]string, len(duplicates))}
		for i, duplicate := range duplicates {
			res.Duplicates[i] = duplicate.String()
		}
		return res, nil
	}
}
