package postprocess

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeWorker is the synthetic black-box endpoint spec.md §9 calls for:
// deterministic responses with no real subprocess.
type fakeWorker struct {
	mu     sync.Mutex
	closed bool
	fn     func(req Request) (Result, error)
}

func (w *fakeWorker) Run(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, &Failure{Kind: Interrupted, Message: ctx.Err().Error()}
	default:
	}
	return w.fn(req)
}

func (w *fakeWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func echoSpawner(t *testing.T) (SpawnFunc, *[]*fakeWorker) {
	t.Helper()
	var spawned []*fakeWorker
	var mu sync.Mutex
	spawn := func(scriptPath string) (WorkerProcess, error) {
		w := &fakeWorker{fn: func(req Request) (Result, error) {
			return Result{Payload: req.Payload}, nil
		}}
		mu.Lock()
		spawned = append(spawned, w)
		mu.Unlock()
		return w, nil
	}
	return spawn, &spawned
}

func TestPool_RunSpawnsOnFirstDemand(t *testing.T) {
	spawn, spawned := echoSpawner(t)
	pool, err := NewPool(2, time.Hour, spawn)
	require.NoError(t, err)

	res, err := pool.Run(context.Background(), Request{ScriptPath: "a.js", Payload: []byte("hi")})
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), res.Payload)
	require.Len(t, *spawned, 1)

	_, err = pool.Run(context.Background(), Request{ScriptPath: "a.js", Payload: []byte("again")})
	require.NoError(t, err)
	require.Len(t, *spawned, 1, "expected the same worker reused for the same script")
}

func TestPool_EvictsLeastRecentlyUsedOverCapacity(t *testing.T) {
	spawn, spawned := echoSpawner(t)
	pool, err := NewPool(1, time.Hour, spawn)
	require.NoError(t, err)

	_, err = pool.Run(context.Background(), Request{ScriptPath: "a.js"})
	require.NoError(t, err)
	_, err = pool.Run(context.Background(), Request{ScriptPath: "b.js"})
	require.NoError(t, err)

	require.Equal(t, 1, pool.Len())
	require.True(t, (*spawned)[0].closed, "expected the LRU-evicted worker to be closed")
}

func TestPool_SweepIdleTerminatesStaleWorkers(t *testing.T) {
	spawn, _ := echoSpawner(t)
	pool, err := NewPool(4, 10*time.Millisecond, spawn)
	require.NoError(t, err)

	_, err = pool.Run(context.Background(), Request{ScriptPath: "a.js"})
	require.NoError(t, err)
	_, err = pool.Run(context.Background(), Request{ScriptPath: "b.js"})
	require.NoError(t, err)

	terminated := pool.SweepIdle(time.Now().Add(time.Hour))
	require.Equal(t, 2, terminated)
	require.Equal(t, 0, pool.Len())
}

func TestPool_FailureIsStructured(t *testing.T) {
	spawn := func(scriptPath string) (WorkerProcess, error) {
		return nil, &Failure{Kind: MissingScript, Message: scriptPath}
	}
	pool, err := NewPool(1, time.Hour, spawn)
	require.NoError(t, err)

	_, err = pool.Run(context.Background(), Request{ScriptPath: "missing.js"})
	require.Error(t, err)
	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, MissingScript, f.Kind)
}
