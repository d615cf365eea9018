package raft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRandomElectionTimeout(t *testing.T) {
	min, max := 2*time.Second, 5*time.Second

	for i := 0; i < 1000; i++ {
		d := RandomElectionTimeout(min, max)
		assert.GreaterOrEqual(t, d, min)
		assert.LessOrEqual(t, d, max)
	}

	assert.Equal(t, min, RandomElectionTimeout(min, min))
}

func TestMajority(t *testing.T) {
	assert.Equal(t, 1, Majority(1))
	assert.Equal(t, 2, Majority(2))
	assert.Equal(t, 2, Majority(3))
	assert.Equal(t, 3, Majority(4))
	assert.Equal(t, 3, Majority(5))
}
