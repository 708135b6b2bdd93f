package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryGetSet(t *testing.T) {
	c := NewInMemory()
	c.Set("k1", "v1")

	v, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestInMemoryGetMissing(t *testing.T) {
	c := NewInMemory()
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestInMemoryDelete(t *testing.T) {
	c := NewInMemory()
	c.Set("k1", "v1")
	c.Delete("k1")

	_, ok := c.Get("k1")
	assert.False(t, ok)
}

func TestInMemoryInvalidateTagEvictsOnlyTaggedEntries(t *testing.T) {
	c := NewInMemory()
	c.Set("user:1", "ana", "user")
	c.Set("user:2", "bea", "user")
	c.Set("order:1", "o1", "order")

	c.InvalidateTag("user")

	_, ok1 := c.Get("user:1")
	_, ok2 := c.Get("user:2")
	orderVal, ok3 := c.Get("order:1")

	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
	assert.Equal(t, "o1", orderVal)
}

func TestInMemoryClear(t *testing.T) {
	c := NewInMemory()
	c.Set("k1", "v1", "tag1")
	c.Clear()

	_, ok := c.Get("k1")
	assert.False(t, ok)
	c.InvalidateTag("tag1") // must not panic on an empty byTag map
}

func TestInMemorySetOverwritesTagMembership(t *testing.T) {
	c := NewInMemory()
	c.Set("k1", "v1", "tagA")
	c.Set("k1", "v2", "tagB")

	c.InvalidateTag("tagA")
	_, ok := c.Get("k1")
	assert.True(t, ok, "k1 was re-tagged to tagB; invalidating tagA must not evict it")

	c.InvalidateTag("tagB")
	_, ok = c.Get("k1")
	assert.False(t, ok)
}

func TestFingerprintKeyIsDeterministicAndDistinguishesParts(t *testing.T) {
	a := FingerprintKey("SELECT * FROM users", "1")
	b := FingerprintKey("SELECT * FROM users", "1")
	c := FingerprintKey("SELECT * FROM users", "2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
