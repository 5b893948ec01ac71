package rewards

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

// RewardReferral pays the referrer of referredUserID the one-time referral bonus.
// It reports false without error when there is no referrer or the bonus was already paid.
// The referred user's row is locked first, then the referrer's.
func (e *Engine) RewardReferral(ctx context.Context, referredUserID uint, courseID string) (bool, error) {
	courseID = strings.TrimSpace(courseID)

	var (
		granted    bool
		referrerID uint
		ev         *models.GamificationEvent
	)
	err := e.runTx(ctx, "referral", func(tx storage.Tx) error {
		granted, referrerID, ev = false, 0, nil
		referred, err := lockBalance(tx, referredUserID)
		if err != nil {
			return err
		}
		if referred.ReferredBy == nil || *referred.ReferredBy == 0 || *referred.ReferredBy == referredUserID {
			return nil
		}
		referrerID = *referred.ReferredBy

		paid, err := tx.HasReferral(referredUserID)
		if err != nil || paid {
			return err
		}

		referrer, err := lockBalance(tx, referrerID)
		if errors.Is(err, ErrUserNotFound) {
			e.log.Warn("referrer has no balance", zap.Uint("referrer_id", referrerID), zap.Uint("referred_user_id", referredUserID))
			return nil
		}
		if err != nil {
			return err
		}

		g, err := e.newGrant(KindReferralBonus, awardOptions{metadata: map[string]interface{}{
			"referred_user_id": referredUserID,
			"course_id":        courseID,
		}})
		if err != nil {
			return err
		}
		now, day, _ := e.today()
		ev, err = e.applyLocked(tx, &referrer, g, now, day)
		if err != nil {
			return err
		}
		if err := tx.CreateReferral(&models.ReferralEvent{
			ReferrerID:     referrerID,
			ReferredUserID: referredUserID,
			CourseID:       courseID,
			CoinsAwarded:   g.coins,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		granted = true
		return nil
	})
	if errors.Is(err, ErrAlreadyAwarded) || errors.Is(err, storage.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !granted {
		return false, nil
	}

	e.log.Info("referral bonus paid",
		zap.Uint("referrer_id", referrerID),
		zap.Uint("referred_user_id", referredUserID),
		zap.String("course_id", courseID),
	)
	e.publish(ctx, ev)
	e.invalidateBoard(ctx)
	return true, nil
}
