package rewards

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

// LoginResult reports the outcome of TriggerDailyLogin.
type LoginResult struct {
	AwardResult
	CurrentStreak int   `json:"current_streak"`
	LongestStreak int   `json:"longest_streak"`
	Milestones    []int `json:"milestones,omitempty"`
}

// streakState is the per-user streak bookkeeping.
type streakState struct {
	current, longest int
	lastActive       string
}

// advance applies one login on today. changed is false when today was already counted.
//   - last login yesterday: streak grows by one
//   - gap of two days or more, or first login: streak restarts at 1
func (s streakState) advance(today, yesterday string) (next streakState, changed bool) {
	if s.lastActive == today {
		return s, false
	}
	next = s
	if s.lastActive == yesterday && s.current > 0 {
		next.current = s.current + 1
	} else {
		next.current = 1
	}
	if next.current > next.longest {
		next.longest = next.current
	}
	next.lastActive = today
	return next, true
}

// crossedMilestones returns the milestones reached by moving from prev to cur.
func crossedMilestones(milestones []int, prev, cur int) []int {
	var out []int
	for _, m := range milestones {
		if m > 0 && prev < m && cur >= m {
			out = append(out, m)
		}
	}
	return out
}

// TriggerDailyLogin updates the login streak and then grants DAILY_LOGIN, plus
// STREAK_MILESTONE for every milestone the new streak reaches. Streak update and
// ledger rows commit together; a second call on the same day changes nothing.
func (e *Engine) TriggerDailyLogin(ctx context.Context, userID uint) (LoginResult, error) {
	daily, err := e.newGrant(KindDailyLogin, awardOptions{})
	if err != nil {
		return LoginResult{}, err
	}

	var (
		res      LoginResult
		events   []*models.GamificationEvent
		recorded bool
	)
	err = e.runTx(ctx, "daily_login", func(tx storage.Tx) error {
		res, events, recorded = LoginResult{}, nil, false
		bal, err := lockBalance(tx, userID)
		if err != nil {
			return err
		}
		now, today, yesterday := e.today()

		prev := streakState{current: bal.CurrentStreak, longest: bal.LongestStreak, lastActive: bal.LastActiveDate}
		next, changed := prev.advance(today, yesterday)
		if !changed {
			res = LoginResult{
				AwardResult:   AwardResult{Points: bal.Points, Coins: bal.Coins, AlreadyAwarded: true},
				CurrentStreak: bal.CurrentStreak,
				LongestStreak: bal.LongestStreak,
			}
			return nil
		}
		bal.CurrentStreak, bal.LongestStreak, bal.LastActiveDate = next.current, next.longest, next.lastActive
		if err := tx.SaveBalance(&bal); err != nil {
			return err
		}

		// a DAILY_LOGIN row for today without a streak update (older rows, manual inserts)
		// still counts the day; only the duplicate payout is skipped
		ev, err := e.applyLocked(tx, &bal, daily, now, today)
		paidBefore := errors.Is(err, ErrAlreadyAwarded)
		if err != nil && !paidBefore {
			return err
		}
		if ev != nil {
			events = append(events, ev)
		}

		var reached []int
		for _, m := range crossedMilestones(e.cfg.StreakMilestones, prev.current, next.current) {
			g, err := e.newGrant(KindStreakMilestone, awardOptions{metadata: map[string]interface{}{"milestone": m}})
			if err != nil {
				return err
			}
			mev, err := e.applyLocked(tx, &bal, g, now, today)
			if errors.Is(err, ErrAlreadyAwarded) {
				continue
			}
			if err != nil {
				return err
			}
			events = append(events, mev)
			reached = append(reached, m)
		}

		res = LoginResult{
			AwardResult:   AwardResult{Points: bal.Points, Coins: bal.Coins, AlreadyAwarded: paidBefore, Event: ev},
			CurrentStreak: bal.CurrentStreak,
			LongestStreak: bal.LongestStreak,
			Milestones:    reached,
		}
		recorded = true
		return nil
	})
	if err != nil {
		return LoginResult{}, err
	}
	if !recorded {
		return res, nil
	}

	e.log.Info("daily login recorded",
		zap.Uint("user_id", userID),
		zap.Int("current_streak", res.CurrentStreak),
		zap.Int("longest_streak", res.LongestStreak),
		zap.Ints("milestones", res.Milestones),
	)
	e.publish(ctx, events...)
	e.invalidateBoard(ctx)

	if len(events) == 0 {
		return res, nil
	}
	badges, err := e.EvaluateBadges(ctx, userID, res.Points)
	res.Badges = badges
	if err != nil {
		e.log.Error("badge evaluation failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	return res, nil
}
