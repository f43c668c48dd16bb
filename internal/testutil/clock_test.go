package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestStepClock_Steps(t *testing.T) {
	clock := NewStepClock(start, time.Minute)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Minute), clock.Now())
	assert.Equal(t, start.Add(2*time.Minute), clock.Peek())
	assert.Equal(t, start.Add(2*time.Minute), clock.Now())
}

func TestStepClock_ZeroStepFreezes(t *testing.T) {
	clock := NewStepClock(start, 0)
	clock.Now()
	assert.Equal(t, start, clock.Now())
}

func TestStepClock_AdvanceAndReset(t *testing.T) {
	clock := NewStepClock(start, time.Second)

	clock.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), clock.Now())

	clock.Reset()
	assert.Equal(t, start, clock.Now())
}

func TestStepClock_NormalisesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	clock := NewStepClock(start.In(loc), 0)
	assert.Equal(t, time.UTC, clock.Now().Location())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(start, time.Nanosecond)
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range callsPerGoroutine {
				got := clock.Now()
				mu.Lock()
				seen[got] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, numGoroutines*callsPerGoroutine, "every reading is distinct")
	assert.Equal(t, start.Add(numGoroutines*callsPerGoroutine*time.Nanosecond), clock.Peek())
}
