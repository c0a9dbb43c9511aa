package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInflightFloorEmpty(t *testing.T) {
	var f inflight
	f.init()

	assert.Equal(t, uint64(10), f.floor(10), "nothing in flight: everything issued is applied")
}

func TestInflightFloorTracksMinimum(t *testing.T) {
	var f inflight
	f.init()

	f.add(5)
	f.add(8)
	f.add(3)

	assert.Equal(t, uint64(2), f.floor(8), "floor is one below the lowest in-flight id")

	f.remove(3)
	assert.Equal(t, uint64(4), f.floor(8))

	f.remove(5)
	f.remove(8)
	assert.Equal(t, uint64(8), f.floor(8))
}
