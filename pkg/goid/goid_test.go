package goid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/system-monitor-pro/pkg/goid"
)

func TestGetGID(t *testing.T) {
	main := goid.GetGID()
	assert.NotZero(t, main)

	ch := make(chan uint64)
	go func() { ch <- goid.GetGID() }()
	other := <-ch
	assert.NotZero(t, other)
	assert.NotEqual(t, main, other)
}
