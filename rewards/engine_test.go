package rewards

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) {
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) kinds() []EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]EventKind, len(n.sent))
	for i, m := range n.sent {
		out[i] = m.Kind
	}
	return out
}

type testEnv struct {
	engine   *Engine
	store    *storage.MemoryStore
	clock    *testClock
	notifier *recordingNotifier
}

func newTestEnv(t *testing.T, cfg Config, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    storage.NewMemoryStore(),
		clock:    newTestClock(),
		notifier: &recordingNotifier{},
	}
	opts = append([]Option{WithClock(env.clock.Now), WithNotifier(env.notifier)}, opts...)
	env.engine = NewEngine(env.store, cfg, opts...)
	return env
}

func (env *testEnv) user(t *testing.T, id uint, referredBy ...uint) models.Balance {
	t.Helper()
	acct := NewAccount{UserID: id, Username: "learner"}
	if len(referredBy) > 0 {
		acct.ReferredBy = &referredBy[0]
	}
	bal, created, err := env.engine.EnsureBalance(context.Background(), acct)
	require.NoError(t, err)
	require.True(t, created)
	// distinct creation times keep leaderboard tiebreaks predictable
	env.clock.Advance(time.Second)
	return bal
}

func (env *testEnv) fund(t *testing.T, id uint, coins int64) {
	t.Helper()
	_, err := env.engine.Adjust(context.Background(), id, 0, coins, "test funding")
	require.NoError(t, err)
}

func (env *testEnv) balance(t *testing.T, id uint) models.Balance {
	t.Helper()
	b, err := env.store.Balance(context.Background(), id)
	require.NoError(t, err)
	return b
}

// conflictStore fails the first n transactions with a retryable conflict.
type conflictStore struct {
	*storage.MemoryStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *conflictStore) Transaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return storage.ErrConflict
	}
	return s.MemoryStore.Transaction(ctx, fn)
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, []int{7, 30, 100}, cfg.StreakMilestones)
	assert.Equal(t, defaultBadgeMaxPasses, cfg.BadgeMaxPasses)
	assert.Equal(t, defaultMaxTxRetries, cfg.MaxTxRetries)
	assert.NotEmpty(t, cfg.Catalog)

	noRetry := Config{MaxTxRetries: -1}
	noRetry.applyDefaults()
	assert.Equal(t, 0, noRetry.MaxTxRetries)
}

func TestTodayUsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	env := newTestEnv(t, Config{Location: loc})
	// 2024-03-01 20:00 UTC is already March 2nd at UTC+9
	env.clock.Advance(11 * time.Hour)

	_, today, yesterday := env.engine.today()
	assert.Equal(t, "2024-03-02", today)
	assert.Equal(t, "2024-03-01", yesterday)
}

func TestRunTxRetriesConflicts(t *testing.T) {
	cs := &conflictStore{MemoryStore: storage.NewMemoryStore(), failures: 2}
	e := NewEngine(cs, Config{MaxTxRetries: 3})

	_, created, err := e.EnsureBalance(context.Background(), NewAccount{UserID: 1})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 3, cs.calls)
}

func TestRunTxGivesUpAfterRetries(t *testing.T) {
	cs := &conflictStore{MemoryStore: storage.NewMemoryStore(), failures: 10}
	e := NewEngine(cs, Config{MaxTxRetries: 1})

	_, _, err := e.EnsureBalance(context.Background(), NewAccount{UserID: 1})
	require.ErrorIs(t, err, ErrTransactionConflict)
	assert.Equal(t, 2, cs.calls)
}

func TestEnsureBalanceIsIdempotent(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx := context.Background()
	self := uint(4)

	bal, created, err := env.engine.EnsureBalance(ctx, NewAccount{UserID: 4, Username: "<b>ada</b>", ReferredBy: &self})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "ada", bal.Username)
	assert.Nil(t, bal.ReferredBy, "self referral is dropped")
	assert.Zero(t, bal.Points)
	assert.Zero(t, bal.Coins)

	_, created, err = env.engine.EnsureBalance(ctx, NewAccount{UserID: 4, Username: "other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "ada", env.balance(t, 4).Username)

	_, _, err = env.engine.EnsureBalance(ctx, NewAccount{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
