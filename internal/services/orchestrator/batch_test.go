package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_EmitStopsAfterCancel(t *testing.T) {
	b := newBatch(context.Background(), 0)

	assert.True(t, b.Emit(func() {}))
	b.Cancel()

	ran := false
	assert.False(t, b.Emit(func() { ran = true }))
	assert.False(t, ran)
	assert.True(t, b.Cancelled())
}

func TestBatch_ParentCancellationSuppressesEmit(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	b := newBatch(parent, 0)

	cancel()

	assert.True(t, b.Cancelled())
	assert.False(t, b.Emit(func() {}))
}

func TestBatch_StartRunsTasksThenCompletes(t *testing.T) {
	// Arrange
	b := newBatch(context.Background(), 2)
	var ran atomic.Int32
	var completed atomic.Bool
	tasks := []func(context.Context){
		func(context.Context) { ran.Add(1) },
		func(context.Context) { ran.Add(1) },
		func(context.Context) { ran.Add(1) },
	}

	// Act
	b.start(tasks, func() { completed.Store(true) })

	// Assert
	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("batch did not finish")
	}
	assert.Equal(t, int32(3), ran.Load())
	assert.True(t, completed.Load())
}

func TestBatch_CancelAbortsBlockedTasks(t *testing.T) {
	b := newBatch(context.Background(), 0)
	started := make(chan struct{})
	b.start([]func(context.Context){
		func(ctx context.Context) {
			close(started)
			<-ctx.Done()
		},
	}, nil)

	<-started
	b.Cancel()

	require.Eventually(t, func() bool {
		select {
		case <-b.Done():
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestBatch_FinishingIsNotCancellation(t *testing.T) {
	// Arrange
	b := newBatch(context.Background(), 1)

	// Act
	b.start(nil, nil)
	<-b.Done()

	// Assert
	assert.False(t, b.Cancelled())
	assert.Error(t, b.Context().Err())
}

func TestBatch_CancelledSurvivesFinish(t *testing.T) {
	b := newBatch(context.Background(), 1)
	b.Cancel()

	b.start(nil, nil)
	<-b.Done()

	assert.True(t, b.Cancelled())
}
