package tasks

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_OneExecutionPerName(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	var runs atomic.Int32

	job := func() {
		runs.Add(1)
		<-release
	}

	first, launched := r.Dispatch("slow", job)
	require.True(t, launched)
	require.NotNil(t, first)

	second, launched := r.Dispatch("slow", job)
	assert.False(t, launched)
	assert.Same(t, first, second, "dropped dispatch returns the running handle")
	assert.True(t, r.Running("slow"))

	close(release)
	first.Wait()
	assert.False(t, first.Running())
	assert.Equal(t, int32(1), runs.Load())

	third, launched := r.Dispatch("slow", func() { runs.Add(1) })
	require.True(t, launched)
	third.Wait()
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, int32(2), runs.Load())
}

func TestDispatch_NamesAreIndependent(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	defer close(release)

	_, launched := r.Dispatch("a", func() { <-release })
	require.True(t, launched)

	h, launched := r.Dispatch("b", func() {})
	require.True(t, launched)
	h.Wait()
}

func TestDispatch_DroppedWhileNameHeld(t *testing.T) {
	r := NewRegistry()
	inside := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Do("models", func() {
			close(inside)
			<-release
		})
	}()
	<-inside

	start := time.Now()
	h, launched := r.Dispatch("models", func() { t.Error("should not run") })
	assert.False(t, launched)
	assert.Nil(t, h)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "dispatch must not block")

	close(release)
	wg.Wait()

	h, launched = r.Dispatch("models", func() {})
	require.True(t, launched)
	h.Wait()
}

func TestDispatch_RecoversPanics(t *testing.T) {
	r := NewRegistry()

	h, launched := r.Dispatch("boom", func() { panic("broken job") })
	require.True(t, launched)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("panicking job never finished")
	}

	h, launched = r.Dispatch("boom", func() {})
	require.True(t, launched, "a panicked job frees its name")
	h.Wait()
}

func TestDispatch_Concurrent(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	var runs, launches atomic.Int32
	var wg sync.WaitGroup
	handles := make(chan *Handle, 50)

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, launched := r.Dispatch("race", func() {
				runs.Add(1)
				<-release
			})
			if launched {
				launches.Add(1)
				handles <- h
			}
		}()
	}
	wg.Wait()
	close(release)
	close(handles)
	for h := range handles {
		h.Wait()
	}

	assert.Equal(t, int32(1), launches.Load())
	assert.Equal(t, int32(1), runs.Load())
}
