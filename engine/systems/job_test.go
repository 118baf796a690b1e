package systems

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemValidates(t *testing.T) {
	_, err := NewJobSystem(context.Background(), 0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(context.Background(), 1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunsCallbacks(t *testing.T) {
	js, err := NewJobSystem(context.Background(), 4, 8)
	require.NoError(t, err)
	defer js.Shutdown()

	var completed, failed atomic.Int32
	boom := errors.New("boom")
	for i := 0; i < 20; i++ {
		fail := i%4 == 0
		js.Submit(Job{
			Name: "job",
			Run: func(context.Context) error {
				if fail {
					return boom
				}
				return nil
			},
			OnComplete: func() { completed.Add(1) },
			OnFailure: func(err error) {
				assert.ErrorIs(t, err, boom)
				failed.Add(1)
			},
		})
	}
	js.Wait()
	assert.Equal(t, int32(15), completed.Load())
	assert.Equal(t, int32(5), failed.Load())
}

func TestJobSystemCancelledContextSkipsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	js, err := NewJobSystem(ctx, 1, 1)
	require.NoError(t, err)

	var ran atomic.Bool
	var got error
	js.Submit(Job{
		Name:      "late",
		Run:       func(context.Context) error { ran.Store(true); return nil },
		OnFailure: func(err error) { got = err },
	})
	js.Wait()
	require.NoError(t, js.Shutdown())
	assert.False(t, ran.Load())
	assert.ErrorIs(t, got, context.Canceled)
}

func TestJobSystemShutdownIsIdempotent(t *testing.T) {
	js, err := NewJobSystem(context.Background(), 2, 0)
	require.NoError(t, err)
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
}
