package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2024, 3, 5, 19, 0, 0, 0, time.UTC)
	c := Fake(start)

	assert.Equal(t, start, c.Now())

	c.Advance(6 * time.Minute)
	assert.Equal(t, start.Add(6*time.Minute), c.Now())

	later := start.Add(24 * time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestFakeClock_Concurrent(t *testing.T) {
	c := Fake(time.Unix(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Unix(100, 0), c.Now())
}

func TestReal(t *testing.T) {
	before := time.Now()
	now := Real().Now()
	assert.False(t, now.Before(before))
}
