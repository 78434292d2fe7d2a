package redisqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDataKeyIsStableAndDistinct(t *testing.T) {
	a := dataKey("H:host:1")
	b := dataKey("H:host:1")
	c := dataKey("H:host:2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
