package rewards

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

// EvaluateBadges grants every active badge the user qualifies for at currentPoints and
// pays the BADGE_EARNED bonus for each. Bonus points can unlock further badges, so
// evaluation repeats, at most BadgeMaxPasses times.
func (e *Engine) EvaluateBadges(ctx context.Context, userID uint, currentPoints int64) ([]models.Badge, error) {
	var granted []models.Badge
	points := currentPoints

	for pass := 0; pass < e.cfg.BadgeMaxPasses; pass++ {
		eligible, err := e.store.EligibleBadges(ctx, userID, points)
		if err != nil {
			return granted, err
		}
		if len(eligible) == 0 {
			return granted, nil
		}

		progressed := false
		for _, b := range eligible {
			ok, newPoints, err := e.grantBadge(ctx, userID, b)
			if err != nil {
				return granted, err
			}
			if !ok {
				continue
			}
			granted = append(granted, b)
			if newPoints != points {
				points = newPoints
				progressed = true
			}
		}
		if !progressed {
			return granted, nil
		}
	}

	e.log.Warn("badge evaluation stopped at pass limit",
		zap.Uint("user_id", userID),
		zap.Int("passes", e.cfg.BadgeMaxPasses),
	)
	return granted, nil
}

// grantBadge inserts the UserBadge row and its bonus in one transaction. The point
// requirement is re-checked against the locked balance. ok is false when another
// caller granted the badge first.
func (e *Engine) grantBadge(ctx context.Context, userID uint, b models.Badge) (ok bool, points int64, err error) {
	bonus, err := e.newGrant(KindBadgeEarned, awardOptions{
		description: fmt.Sprintf("Earned badge: %s", b.Name),
		metadata:    map[string]interface{}{"badge_id": b.ID, "badge_name": b.Name},
	})
	if err != nil {
		return false, 0, err
	}

	var bonusEvent *models.GamificationEvent
	err = e.runTx(ctx, "grant_badge", func(tx storage.Tx) error {
		ok, points, bonusEvent = false, 0, nil
		bal, err := lockBalance(tx, userID)
		if err != nil {
			return err
		}
		points = bal.Points
		if bal.Points < b.PointsRequired {
			return nil
		}
		now, day, _ := e.today()
		inserted, err := tx.GrantBadge(&models.UserBadge{UserID: userID, BadgeID: b.ID, EarnedAt: now})
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		ok = true
		ev, err := e.applyLocked(tx, &bal, bonus, now, day)
		if err != nil && !errors.Is(err, ErrAlreadyAwarded) {
			return err
		}
		bonusEvent = ev
		points = bal.Points
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	if ok {
		e.log.Info("badge granted", zap.Uint("user_id", userID), zap.Uint("badge_id", b.ID), zap.String("badge", b.Name))
		e.publish(ctx, bonusEvent)
		e.invalidateBoard(ctx)
	}
	return ok, points, nil
}

// CreateBadge adds a badge definition.
func (e *Engine) CreateBadge(ctx context.Context, b models.Badge) (models.Badge, error) {
	b.Name = cleanText(b.Name, 128)
	b.Description = cleanText(b.Description, 255)
	if b.Name == "" || b.PointsRequired < 0 {
		return models.Badge{}, fmt.Errorf("%w: badge needs a name and a non-negative threshold", ErrInvalidInput)
	}
	b.CreatedAt = e.now()
	err := e.runTx(ctx, "create_badge", func(tx storage.Tx) error {
		b.ID = 0
		return tx.CreateBadge(&b)
	})
	return b, err
}

// ActiveBadges lists badge definitions learners can earn.
func (e *Engine) ActiveBadges(ctx context.Context) ([]models.Badge, error) {
	return e.store.ActiveBadges(ctx)
}
