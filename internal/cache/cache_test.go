package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemory()
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", []byte("v"), time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemory()
	c.Set("k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCacheNoTTLNeverExpires(t *testing.T) {
	c := NewMemory()
	c.Set("k", []byte("v"), 0)
	time.Sleep(2 * time.Millisecond)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestNewAutoFallsBackToMemory(t *testing.T) {
	c := NewAuto("")
	_, isMemory := c.(*memory)
	assert.True(t, isMemory)
}
