package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

// NewAccount is what the identity service tells us about a freshly created user.
type NewAccount struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	ReferredBy *uint  `json:"referred_by,omitempty"`
}

// EnsureBalance creates the zeroed balance row for an account. Calling it again for
// an existing user returns the stored row with created=false and changes nothing.
func (e *Engine) EnsureBalance(ctx context.Context, acct NewAccount) (bal models.Balance, created bool, err error) {
	if acct.UserID == 0 {
		return models.Balance{}, false, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if acct.ReferredBy != nil && (*acct.ReferredBy == 0 || *acct.ReferredBy == acct.UserID) {
		acct.ReferredBy = nil
	}
	username := cleanText(acct.Username, 64)

	err = e.runTx(ctx, "ensure_balance", func(tx storage.Tx) error {
		created = false
		existing, err := tx.LockBalance(acct.UserID)
		if err == nil {
			bal = existing
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		bal = models.Balance{
			UserID:     acct.UserID,
			Username:   username,
			ReferredBy: acct.ReferredBy,
			CreatedAt:  e.now(),
		}
		if err := tx.CreateBalance(&bal); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, storage.ErrDuplicate) {
		// lost the insert race to a concurrent provisioning call
		bal, err = e.store.Balance(ctx, acct.UserID)
		return bal, false, err
	}
	if err != nil {
		return models.Balance{}, false, err
	}
	if created {
		e.log.Info("balance provisioned", zap.Uint("user_id", acct.UserID), zap.String("username", username))
		e.invalidateBoard(ctx)
	}
	return bal, created, nil
}

// CourseResult sums up the rewards triggered by a course purchase.
type CourseResult struct {
	FirstCourse  AwardResult `json:"first_course"`
	Enrollment   AwardResult `json:"enrollment"`
	ReferralPaid bool        `json:"referral_paid"`
}

// CoursePurchased is called by the course catalog after a learner bought a course.
// It grants FIRST_COURSE (once per account), COURSE_ENROLL for the course and pays the
// referral bonus if this learner was referred.
func (e *Engine) CoursePurchased(ctx context.Context, userID uint, courseID string) (CourseResult, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return CourseResult{}, fmt.Errorf("%w: course id is required", ErrInvalidInput)
	}
	meta := WithMetadata(map[string]interface{}{"course_id": courseID})

	var res CourseResult
	var err error
	if res.FirstCourse, err = e.Award(ctx, userID, KindFirstCourse, meta); err != nil {
		return res, err
	}
	if res.Enrollment, err = e.Award(ctx, userID, KindCourseEnroll, meta); err != nil {
		return res, err
	}
	if res.ReferralPaid, err = e.RewardReferral(ctx, userID, courseID); err != nil {
		return res, err
	}
	return res, nil
}
