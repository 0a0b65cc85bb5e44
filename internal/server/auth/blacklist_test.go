package auth

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklist_AddContains(t *testing.T) {
	b := NewBlacklist()
	exp := time.Now().Add(time.Hour)

	assert.False(t, b.Contains("h1"))
	b.Add("h1", exp)
	b.Add("h1", exp)
	assert.True(t, b.Contains("h1"))
	assert.False(t, b.Contains("h2"))
	assert.Equal(t, 1, b.Len())
}

func TestBlacklist_Cleanup(t *testing.T) {
	b := NewBlacklist()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	b.Add("expired", now.Add(-time.Minute))
	b.Add("boundary", now)
	b.Add("live", now.Add(time.Minute))

	require.Equal(t, 2, b.Cleanup(now))
	assert.True(t, b.Contains("live"))
	assert.False(t, b.Contains("expired"))
	assert.False(t, b.Contains("boundary"))
}

func TestBlacklist_ConcurrentUse(t *testing.T) {
	b := NewBlacklist()
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := fmt.Sprintf("h%d", i)
			b.Add(h, exp)
			_ = b.Contains(h)
			_ = b.Cleanup(time.Now())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, b.Len())
}
