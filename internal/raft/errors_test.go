package raft

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, ToStatus(nil))
	})

	t.Run("maps wrapped sentinels to codes", func(t *testing.T) {
		cases := map[error]codes.Code{
			ErrNotLeader:         codes.FailedPrecondition,
			ErrNotReady:          codes.Unavailable,
			ErrKeyNotFound:       codes.NotFound,
			ErrReplicationFailed: codes.Aborted,
			ErrLeaderUnreachable: codes.Unavailable,
			ErrNoLeaderAvailable: codes.Unavailable,
			ErrPartitioned:       codes.Unavailable,
			ErrInvalidConfig:     codes.InvalidArgument,
		}
		for sentinel, code := range cases {
			err := ToStatus(fmt.Errorf("put x: %w", sentinel))
			st, ok := status.FromError(err)
			assert.True(t, ok)
			assert.Equal(t, code, st.Code(), sentinel.Error())
			assert.Equal(t, sentinel.Error(), st.Message())
		}
	})

	t.Run("unknown errors become Internal", func(t *testing.T) {
		st, _ := status.FromError(ToStatus(errors.New("boom")))
		assert.Equal(t, codes.Internal, st.Code())
	})

	t.Run("status errors pass through", func(t *testing.T) {
		in := status.Error(codes.DeadlineExceeded, "slow")
		assert.Equal(t, in, ToStatus(in))
	})
}

func TestFromStatus(t *testing.T) {
	t.Run("recovers sentinels", func(t *testing.T) {
		for _, sentinel := range []error{ErrNotLeader, ErrReplicationFailed, ErrKeyNotFound, ErrNoLeaderAvailable} {
			err := FromStatus(ToStatus(sentinel))
			assert.ErrorIs(t, err, sentinel)
		}
	})

	t.Run("leaves unknown statuses alone", func(t *testing.T) {
		in := status.Error(codes.Unavailable, "connection refused")
		assert.Equal(t, in, FromStatus(in))
	})

	t.Run("leaves plain errors alone", func(t *testing.T) {
		in := errors.New("plain")
		assert.Equal(t, in, FromStatus(in))
	})
}
