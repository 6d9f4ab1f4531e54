package naming

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshini-shah/dfs/pkg/dfs"
)

func TestTreeInsertCreatesIntermediateDirectories(t *testing.T) {
	tr := newTree()
	srv := newFakeServer("a")

	n := tr.insert(dfs.MustParsePath("/a/b/c"), srv.pair(), false)
	require.NotNil(t, n)
	require.Equal(t, kindFile, n.kind)

	a := tr.find(dfs.MustParsePath("/a"))
	require.NotNil(t, a)
	require.Equal(t, kindDirectory, a.kind)

	b := tr.find(dfs.MustParsePath("/a/b"))
	require.NotNil(t, b)
	require.Equal(t, kindDirectory, b.kind)
	require.Same(t, n, b.children["c"])
	require.Same(t, b, n.parent)
}

func TestTreeInsertExistingFileAddsReplica(t *testing.T) {
	tr := newTree()
	first := newFakeServer("a")
	second := newFakeServer("b")

	path := dfs.MustParsePath("/x")
	require.NotNil(t, tr.insert(path, first.pair(), false))
	require.NotNil(t, tr.insert(path, second.pair(), false))
	// Duplicate stub identities are dropped
	require.NotNil(t, tr.insert(path, first.pair(), false))

	n := tr.find(path)
	require.NotNil(t, n)
	require.Len(t, n.replicas, 2)
	require.Equal(t, 2, n.liveReplicas)
}

func TestTreeInsertNeverTurnsFileIntoDirectory(t *testing.T) {
	tr := newTree()
	srv := newFakeServer("a")

	require.NotNil(t, tr.insert(dfs.MustParsePath("/a"), srv.pair(), false))
	require.Nil(t, tr.insert(dfs.MustParsePath("/a/b"), srv.pair(), false))

	// The file is untouched and has no children
	n := tr.find(dfs.MustParsePath("/a"))
	require.Equal(t, kindFile, n.kind)
	require.Nil(t, n.children)
	require.Nil(t, tr.find(dfs.MustParsePath("/a/b")))
}

func TestTreeLookupStopsEarlyOnFile(t *testing.T) {
	tr := newTree()
	srv := newFakeServer("a")
	tr.insert(dfs.MustParsePath("/a"), srv.pair(), false)

	tr.mu.Lock()
	n := tr.lookupLocked(dfs.MustParsePath("/a/b/c"))
	tr.mu.Unlock()

	require.NotNil(t, n)
	require.Equal(t, "/a", n.path.String())
	// The exact-match variant rejects it
	require.Nil(t, tr.find(dfs.MustParsePath("/a/b/c")))
}

func TestTreeRemovePropagatesDeletesToReplicas(t *testing.T) {
	tr := newTree()
	a := newFakeServer("a")
	b := newFakeServer("b")

	tr.insert(dfs.MustParsePath("/d/e/f"), a.pair(), false)
	tr.insert(dfs.MustParsePath("/d/e/f"), b.pair(), false)
	tr.insert(dfs.MustParsePath("/d/g"), a.pair(), false)

	require.True(t, tr.remove(context.Background(), dfs.MustParsePath("/d")))

	require.Nil(t, tr.find(dfs.MustParsePath("/d")))
	require.Contains(t, a.command.deleted(), "/d/e/f")
	require.Contains(t, a.command.deleted(), "/d/g")
	require.Contains(t, b.command.deleted(), "/d/e/f")
	require.NotContains(t, b.command.deleted(), "/d/g")
}

func TestTreeRemoveRoot(t *testing.T) {
	tr := newTree()
	require.False(t, tr.remove(context.Background(), dfs.Root()))
}

func TestTreeMergeRegisterReportsDuplicates(t *testing.T) {
	tr := newTree()
	a := newFakeServer("a")
	b := newFakeServer("b")

	duplicates := tr.mergeRegister(mustPaths("/x", "/y/z"), a.pair())
	require.Empty(t, duplicates)

	duplicates = tr.mergeRegister(mustPaths("/x", "/w"), b.pair())
	require.Len(t, duplicates, 1)
	require.Equal(t, "/x", duplicates[0].String())

	// The duplicate did not gain a replica
	n := tr.find(dfs.MustParsePath("/x"))
	require.Len(t, n.replicas, 1)
	require.Equal(t, a.pair().Storage, n.replicas[0].Storage)
	require.NotNil(t, tr.find(dfs.MustParsePath("/w")))
}

func TestTreeMergeRegisterDeepestFirst(t *testing.T) {
	tr := newTree()
	srv := newFakeServer("a")

	// The shallow prefix is processed after the file beneath it, so the
	// directory wins and the prefix is reported back as a duplicate.
	duplicates := tr.mergeRegister(mustPaths("/a", "/a/b"), srv.pair())
	require.Len(t, duplicates, 1)
	require.Equal(t, "/a", duplicates[0].String())

	a := tr.find(dfs.MustParsePath("/a"))
	require.Equal(t, kindDirectory, a.kind)
	file := tr.find(dfs.MustParsePath("/a/b"))
	require.Equal(t, kindFile, file.kind)
}
