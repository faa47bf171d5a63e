package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_ReturnsFrozenInstant(t *testing.T) {
	clock := MustParse("2024-01-10 08:30:00")

	want := time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC)
	assert.Equal(t, want, clock.Now())
	assert.Equal(t, want, clock.Now())
}

func TestFixedClock_SetAndAdvance(t *testing.T) {
	clock := MustParse("2024-01-10 00:00:00")

	clock.Advance(90 * time.Minute)
	assert.Equal(t, "2024-01-10 01:30:00", clock.Now().Format(time.DateTime))

	clock.Set(time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2020-02-29 00:00:00", clock.Now().Format(time.DateTime))
}

func TestFixedClock_MustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("yesterday") })
}

func TestFixedClock_ThreadSafe(t *testing.T) {
	clock := MustParse("2024-01-10 00:00:00")
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, "2024-01-10 00:00:50", clock.Now().Format(time.DateTime))
}
