package raft

import (
	"math/rand/v2"
	"time"
)

// RandomElectionTimeout draws an election timeout uniformly from [min, max]. A fresh value is drawn every time the
// election timer is armed so that followers rarely time out together and split the vote.
func RandomElectionTimeout(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	// +1 makes the range inclusive, as rand.Int64N excludes its argument
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}
