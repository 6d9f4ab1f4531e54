package naming

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harshini-shah/dfs/pkg/dfs"
	"github.com/harshini-shah/dfs/pkg/metrics"
)

func newTestLockManager(t *testing.T, files ...string) (*lockManager, *tree) {
	t.Helper()
	tr := newTree()
	srv := newFakeServer("a")
	for _, f := range files {
		require.NotNil(t, tr.insert(dfs.MustParsePath(f), srv.pair(), false))
	}
	return newLockManager(tr, metrics.NewNamingMetrics()), tr
}

func TestLockUnknownPath(t *testing.T) {
	lm, _ := newTestLockManager(t, "/a/b")

	err := lm.acquire(context.Background(), dfs.MustParsePath("/missing"), false)
	require.True(t, dfs.IsCode(err, dfs.ErrNotFound))

	// A path that crosses a file is equally unknown
	err = lm.acquire(context.Background(), dfs.MustParsePath("/a/b/c"), false)
	require.True(t, dfs.IsCode(err, dfs.ErrNotFound))
}

func TestSharedLocksCoexist(t *testing.T) {
	lm, _ := newTestLockManager(t, "/a/b")
	ctx := context.Background()
	path := dfs.MustParsePath("/a/b")

	require.NoError(t, lm.acquire(ctx, path, false))
	require.NoError(t, lm.acquire(ctx, path, false))
	require.NoError(t, lm.release(path, false))
	require.NoError(t, lm.release(path, false))
}

func TestExclusiveLockBlocksReadersAndWriters(t *testing.T) {
	lm, _ := newTestLockManager(t, "/a/b")
	ctx := context.Background()
	path := dfs.MustParsePath("/a/b")

	require.NoError(t, lm.acquire(ctx, path, true))

	acquired := make(chan bool, 2)
	for _, exclusive := range []bool{false, true} {
		go func(exclusive bool) {
			if err := lm.acquire(ctx, path, exclusive); err == nil {
				acquired <- exclusive
				lm.release(path, exclusive)
			}
		}(exclusive)
	}

	select {
	case <-acquired:
		t.Fatal("lock acquired while exclusive lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, lm.release(path, true))

	for i := 0; i < 2; i++ {
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("blocked lock was never granted")
		}
	}
}

func TestExclusiveOnAncestorBlocksDescendantReaders(t *testing.T) {
	lm, _ := newTestLockManager(t, "/a/b/c")
	ctx := context.Background()

	require.NoError(t, lm.acquire(ctx, dfs.MustParsePath("/a"), true))

	granted := make(chan struct{})
	go func() {
		if err := lm.acquire(ctx, dfs.MustParsePath("/a/b/c"), false); err == nil {
			close(granted)
		}
	}()

	select {
	case <-granted:
		t.Fatal("descendant read lock granted under ancestor exclusive lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, lm.release(dfs.MustParsePath("/a"), true))

	select {
	case <-granted:
	case <-time.After(time.Second):
		t.Fatal("descendant read lock never granted")
	}
	require.NoError(t, lm.release(dfs.MustParsePath("/a/b/c"), false))
}

func TestDisjointSubtreesLockInParallel(t *testing.T) {
	lm, _ := newTestLockManager(t, "/a/x", "/b/y")
	ctx := context.Background()

	require.NoError(t, lm.acquire(ctx, dfs.MustParsePath("/a/x"), true))
	// A writer on a disjoint subtree shares the root and proceeds
	done := make(chan struct{})
	go func() {
		if err := lm.acquire(ctx, dfs.MustParsePath("/b/y"), true); err == nil {
			close(done)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writers on disjoint subtrees blocked each other")
	}

	require.NoError(t, lm.release(dfs.MustParsePath("/b/y"), true))
	require.NoError(t, lm.release(dfs.MustParsePath("/a/x"), true))
}

func TestWriterPreference(t *testing.T) {
	lm, _ := newTestLockManager(t, "/a/b")
	ctx := context.Background()
	path := dfs.MustParsePath("/a/b")

	// A reader holds the lock
	require.NoError(t, lm.acquire(ctx, path, false))

	// A writer queues behind it
	writerGranted := make(chan struct{})
	go func() {
		if err := lm.acquire(ctx, path, true); err == nil {
			close(writerGranted)
		}
	}()

	// Wait for the writer to be queued on the target node
	target := lm.tree.find(path)
	require.Eventually(t, func() bool {
		target.lockMu.Lock()
		defer target.lockMu.Unlock()
		return len(target.waiters) == 1
	}, time.Second, time.Millisecond)

	// A reader arriving after the queued writer must not overtake it
	lateReaderGranted := make(chan struct{})
	go func() {
		if err := lm.acquire(ctx, path, false); err == nil {
			close(lateReaderGranted)
		}
	}()

	select {
	case <-lateReaderGranted:
		t.Fatal("late reader overtook a queued writer")
	case <-time.After(50 * time.Millisecond):
	}

	// Release the original reader: the writer is admitted first
	require.NoError(t, lm.release(path, false))
	select {
	case <-writerGranted:
	case <-time.After(time.Second):
		t.Fatal("queued writer never granted")
	}
	select {
	case <-lateReaderGranted:
		t.Fatal("late reader granted while writer holds the lock")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, lm.release(path, true))
	select {
	case <-lateReaderGranted:
	case <-time.After(time.Second):
		t.Fatal("late reader never granted")
	}
	require.NoError(t, lm.release(path, false))
}

func TestReaderBatchAdmittedTogether(t *testing.T) {
	lm, _ := newTestLockManager(t, "/a/b")
	ctx := context.Background()
	path := dfs.MustParsePath("/a/b")

	require.NoError(t, lm.acquire(ctx, path, true))

	granted := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		go func() {
			if err := lm.acquire(ctx, path, false); err == nil {
				granted <- struct{}{}
			}
		}()
	}

	target := lm.tree.find(path)
	require.Eventually(t, func() bool {
		target.lockMu.Lock()
		defer target.lockMu.Unlock()
		return len(target.waiters) == 3
	}, time.Second, time.Millisecond)

	require.NoError(t, lm.release(path, true))

	// The whole contiguous run of readers is admitted
	for i := 0; i < 3; i++ {
		select {
		case <-granted:
		case <-time.After(time.Second):
			t.Fatal("queued reader never granted")
		}
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, lm.release(path, false))
	}
}

func TestInterruptedWaiterCleansUp(t *testing.T) {
	lm, _ := newTestLockManager(t, "/a/b")
	path := dfs.MustParsePath("/a/b")

	require.NoError(t, lm.acquire(context.Background(), path, true))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- lm.acquire(ctx, path, true)
	}()

	target := lm.tree.find(path)
	require.Eventually(t, func() bool {
		target.lockMu.Lock()
		defer target.lockMu.Unlock()
		return len(target.waiters) == 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.True(t, dfs.IsCode(err, dfs.ErrInterrupted))
	case <-time.After(time.Second):
		t.Fatal("interrupted waiter never returned")
	}

	// The token is gone and the lock still works
	target.lockMu.Lock()
	require.Empty(t, target.waiters)
	target.lockMu.Unlock()

	require.NoError(t, lm.release(path, true))
	require.NoError(t, lm.acquire(context.Background(), path, true))
	require.NoError(t, lm.release(path, true))
}

func TestReleaseValidatesMode(t *testing.T) {
	lm, _ := newTestLockManager(t, "/a/b")
	path := dfs.MustParsePath("/a/b")

	err := lm.release(path, false)
	require.True(t, dfs.IsCode(err, dfs.ErrInvalidArgument))

	require.NoError(t, lm.acquire(context.Background(), path, false))
	err = lm.release(path, true)
	require.True(t, dfs.IsCode(err, dfs.ErrInvalidArgument))
	require.NoError(t, lm.release(path, false))

	err = lm.release(dfs.MustParsePath("/missing"), false)
	require.True(t, dfs.IsCode(err, dfs.ErrInvalidArgument))
}

func TestAcquireRollsBackOnFailure(t *testing.T) {
	lm, _ := newTestLockManager(t, "/a/b")

	// Cancel during a blocked target acquisition: the ancestor shared
	// locks must be returned.
	require.NoError(t, lm.acquire(context.Background(), dfs.MustParsePath("/a/b"), true))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := lm.acquire(ctx, dfs.MustParsePath("/a/b"), true)
	require.True(t, dfs.IsCode(err, dfs.ErrInterrupted))

	root := lm.tree.root
	root.lockMu.Lock()
	require.Zero(t, root.sharedHolders)
	root.lockMu.Unlock()

	a := lm.tree.find(dfs.MustParsePath("/a"))
	a.lockMu.Lock()
	require.Zero(t, a.sharedHolders)
	a.lockMu.Unlock()

	require.NoError(t, lm.release(dfs.MustParsePath("/a/b"), true))
}
