package dfsrpc

import (
	"bytes"
	"context"

	"github.com/harshini-shah/dfs/pkg/dfs"
)

// StorageHandler dispatches Storage program calls onto a local storage
// implementation.
func StorageHandler(storage dfs.Storage) func(ctx context.Context, procedure uint32, args *bytes.Reader) (any, error) {
	return func(ctx context.Context, procedure uint32, args *bytes.Reader) (any, error) {
		switch procedure {
		case StorageSize:
			path, err := parsePathArg(args)
			if err != nil {
				return nil, err
			}
			size, err := storage.Size(ctx, path)
			return &SizeRes{Size: size}, err

		case StorageRead:
			var readArgs ReadArgs
			if err := DecodeArgs(args, &readArgs); err != nil {
				return nil, dfs.NewError(dfs.ErrRPC, err.Error())
			}
			path, err := dfs.ParsePath(readArgs.Path)
			if err != nil {
				return nil, err
			}
			data, err := storage.Read(ctx, path, readArgs.Offset, int(readArgs.Length))
			return &ReadRes{Data: data}, err

		case StorageWrite:
			var writeArgs WriteArgs
			if err := DecodeArgs(args, &writeArgs); err != nil {
				return nil, dfs.NewError(dfs.ErrRPC, err.Error())
			}
			path, err := dfs.ParsePath(writeArgs.Path)
			if err != nil {
				return nil, err
			}
			return &WriteRes{}, storage.Write(ctx, path, writeArgs.Offset, writeArgs.Data)

		default:
			return nil, errUnknownProcedure(procedure)
		}
	}
}

// CommandHandler dispatches Command program calls onto a local command
// implementation. The copy source announced by the caller is reached
// through a remote storage stub.
func CommandHandler(command dfs.Command) func(ctx context.Context, procedure uint32, args *bytes.Reader) (any, error) {
	return func(ctx context.Context, procedure uint32, args *bytes.Reader) (any, error) {
		switch procedure {
		case CommandCreate:
			path, err := parsePathArg(args)
			if err != nil {
				return nil, err
			}
			created, err := command.Create(ctx, path)
			return &BoolRes{OK: created}, err

		case CommandDelete:
			path, err := parsePathArg(args)
			if err != nil {
				return nil, err
			}
			deleted, err := command.Delete(ctx, path)
			return &BoolRes{OK: deleted}, err

		case CommandCopy:
			var copyArgs CopyArgs
			if err := DecodeArgs(args, &copyArgs); err != nil {
				return nil, dfs.NewError(dfs.ErrRPC, err.Error())
			}
			path, err := dfs.ParsePath(copyArgs.Path)
			if err != nil {
				return nil, err
			}
			source := StorageStubFor(copyArgs.Source.ClientAddr)
			copied, err := command.Copy(ctx, path, source)
			return &BoolRes{OK: copied}, err

		default:
			return nil, errUnknownProcedure(procedure)
		}
	}
}
