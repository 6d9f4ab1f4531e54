package server

import (
	"fmt"

	"github.com/harshini-shah/dfs/pkg/dfs"
)

func errUnknownProgram(program uint32) error {
	return dfs.NewError(dfs.ErrRPC, fmt.Sprintf("endpoint does not serve program %d", program))
}
