package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityLifecycleStateStringKnownValues(t *testing.T) {
	assert.Equal(t, "NEW", StateNew.String())
	assert.Equal(t, "MANAGED", StateManaged.String())
	assert.Equal(t, "REMOVED", StateRemoved.String())
	assert.Equal(t, "DETACHED", StateDetached.String())
}

func TestEntityLifecycleStateStringUnknownValue(t *testing.T) {
	var unknown EntityLifecycleState = 99
	assert.Equal(t, "UNKNOWN", unknown.String())
}
