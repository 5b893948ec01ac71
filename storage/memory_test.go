package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/rewards/models"
)

func TestMemoryTransactionRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Transaction(ctx, func(tx Tx) error {
		return tx.CreateBalance(&models.Balance{UserID: 1, Coins: 10})
	}))

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx Tx) error {
		b, err := tx.LockBalance(1)
		require.NoError(t, err)
		b.Coins = 0
		require.NoError(t, tx.SaveBalance(&b))
		key := "PROFILE_COMPLETE"
		require.NoError(t, tx.AppendEvent(&models.GamificationEvent{UserID: 1, EventKind: key, DedupeKey: &key}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	b, err := s.Balance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), b.Coins)
	require.NoError(t, s.Transaction(ctx, func(tx Tx) error {
		has, err := tx.HasEvent(1, "PROFILE_COMPLETE")
		assert.False(t, has)
		return err
	}))
}

func TestMemoryUniqueness(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	key := "DAILY_LOGIN:2024-03-01"

	err := s.Transaction(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreateBalance(&models.Balance{UserID: 1}))
		assert.ErrorIs(t, tx.CreateBalance(&models.Balance{UserID: 1}), ErrDuplicate)

		require.NoError(t, tx.AppendEvent(&models.GamificationEvent{UserID: 1, DedupeKey: &key}))
		assert.ErrorIs(t, tx.AppendEvent(&models.GamificationEvent{UserID: 1, DedupeKey: &key}), ErrDuplicate)
		// other users and repeatable rows do not collide
		require.NoError(t, tx.AppendEvent(&models.GamificationEvent{UserID: 2, DedupeKey: &key}))
		require.NoError(t, tx.AppendEvent(&models.GamificationEvent{UserID: 1}))
		require.NoError(t, tx.AppendEvent(&models.GamificationEvent{UserID: 1}))

		ok, err := tx.GrantBadge(&models.UserBadge{UserID: 1, BadgeID: 3})
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = tx.GrantBadge(&models.UserBadge{UserID: 1, BadgeID: 3})
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, tx.CreateReferral(&models.ReferralEvent{ReferrerID: 1, ReferredUserID: 2}))
		assert.ErrorIs(t, tx.CreateReferral(&models.ReferralEvent{ReferrerID: 3, ReferredUserID: 2}), ErrDuplicate)
		return nil
	})
	require.NoError(t, err)

	events, err := s.RecentEvents(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestMemoryRanking(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Transaction(ctx, func(tx Tx) error {
		for i, pts := range []int64{10, 30, 30, 0} {
			b := &models.Balance{UserID: uint(i + 1), Points: pts, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
			if err := tx.CreateBalance(b); err != nil {
				return err
			}
		}
		return nil
	}))

	list, err := s.ListBalances(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint{2, 3, 1}, []uint{list[0].UserID, list[1].UserID, list[2].UserID})

	for want, id := range []uint{2, 3, 1, 4} {
		b, err := s.Balance(ctx, id)
		require.NoError(t, err)
		rank, err := s.UserRank(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, int64(want+1), rank, "user %d", id)
	}
}

func TestMemoryTransactionHonoursContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.Transaction(ctx, func(Tx) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
