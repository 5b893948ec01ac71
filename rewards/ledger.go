package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/edulearn/rewards/models"
	"github.com/edulearn/rewards/storage"
)

const maxDescriptionLen = 255

// descriptions end up in notifications rendered by the UI; keep them plain text
var textPolicy = bluemonday.StrictPolicy()

func cleanText(s string, limit int) string {
	s = strings.TrimSpace(textPolicy.Sanitize(s))
	if limit > 0 && len([]rune(s)) > limit {
		s = string([]rune(s)[:limit])
	}
	return s
}

// AwardResult reports the outcome of Award.
// Points and Coins are the balance right after this award (before any badge bonus);
// when AlreadyAwarded is set they are the unchanged current balance.
type AwardResult struct {
	Points         int64                     `json:"points"`
	Coins          int64                     `json:"coins"`
	AlreadyAwarded bool                      `json:"already_awarded"`
	Event          *models.GamificationEvent `json:"event,omitempty"`
	Badges         []models.Badge            `json:"badges,omitempty"`
}

type awardOptions struct {
	description string
	metadata    map[string]interface{}
}

// AwardOption sets the optional parts of an award.
type AwardOption func(*awardOptions)

func WithDescription(d string) AwardOption {
	return func(o *awardOptions) { o.description = d }
}

func WithMetadata(m map[string]interface{}) AwardOption {
	return func(o *awardOptions) {
		if o.metadata == nil {
			o.metadata = map[string]interface{}{}
		}
		for k, v := range m {
			o.metadata[k] = v
		}
	}
}

// grant is one ledger write: the kind plus the resolved amounts.
type grant struct {
	kind        EventKind
	rule        Rule
	points      int64
	coins       int64
	description string
	metadata    map[string]interface{}
}

func (e *Engine) newGrant(kind EventKind, opts awardOptions) (grant, error) {
	rule, ok := e.cfg.Catalog.Rule(kind)
	if !ok {
		return grant{}, fmt.Errorf("%w: %q", ErrUnknownEventKind, kind)
	}
	if rule.KeyField != "" {
		if v, ok := opts.metadata[rule.KeyField]; !ok || keyValue(v) == "" {
			return grant{}, fmt.Errorf("%w: %s needs %q", ErrMissingKey, kind, rule.KeyField)
		}
	}
	desc := opts.description
	if desc == "" {
		desc = rule.Description
	}
	return grant{
		kind:        kind,
		rule:        rule,
		points:      rule.Points,
		coins:       rule.Coins,
		description: cleanText(desc, maxDescriptionLen),
		metadata:    opts.metadata,
	}, nil
}

// applyLocked appends the ledger row for g and credits bal. The caller must hold the
// balance row lock through tx. Returns ErrAlreadyAwarded if the dedupe key exists.
func (e *Engine) applyLocked(tx storage.Tx, bal *models.Balance, g grant, now time.Time, day string) (*models.GamificationEvent, error) {
	var dedupe *string
	if key := g.rule.dedupeKey(g.kind, g.metadata, day); key != "" {
		exists, err := tx.HasEvent(bal.UserID, key)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrAlreadyAwarded
		}
		dedupe = &key
	}

	newPoints := bal.Points + g.points
	newCoins := bal.Coins + g.coins
	if newPoints < 0 {
		return nil, ErrNegativeBalance
	}
	if newCoins < 0 {
		return nil, ErrInsufficientCoins
	}

	ev := &models.GamificationEvent{
		UserID:        bal.UserID,
		EventKind:     string(g.kind),
		PointsGranted: g.points,
		CoinsGranted:  g.coins,
		DedupeKey:     dedupe,
		Description:   g.description,
		Metadata:      g.metadata,
		CreatedAt:     now,
	}
	if err := tx.AppendEvent(ev); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrAlreadyAwarded
		}
		return nil, err
	}

	bal.Points, bal.Coins = newPoints, newCoins
	if err := tx.SaveBalance(bal); err != nil {
		return nil, err
	}
	return ev, nil
}

// commitGrant runs g in its own transaction. AlreadyAwarded outcomes are not errors.
func (e *Engine) commitGrant(ctx context.Context, userID uint, g grant) (AwardResult, error) {
	var res AwardResult
	err := e.runTx(ctx, "award", func(tx storage.Tx) error {
		res = AwardResult{}
		bal, err := lockBalance(tx, userID)
		if err != nil {
			return err
		}
		now, day, _ := e.today()
		ev, err := e.applyLocked(tx, &bal, g, now, day)
		if errors.Is(err, ErrAlreadyAwarded) {
			res = AwardResult{Points: bal.Points, Coins: bal.Coins, AlreadyAwarded: true}
			return err
		}
		if err != nil {
			return err
		}
		res = AwardResult{Points: bal.Points, Coins: bal.Coins, Event: ev}
		return nil
	})
	if errors.Is(err, ErrAlreadyAwarded) {
		e.log.Debug("reward already granted", zap.Uint("user_id", userID), zap.String("kind", string(g.kind)))
		return res, nil
	}
	if err != nil {
		return AwardResult{}, err
	}

	e.log.Info("reward granted",
		zap.Uint("user_id", userID),
		zap.String("kind", string(g.kind)),
		zap.Int64("points", g.points),
		zap.Int64("coins", g.coins),
	)
	e.publish(ctx, res.Event)
	e.invalidateBoard(ctx)
	return res, nil
}

// Award grants the catalog amounts for kind to userID, then evaluates badges against
// the new point total. Duplicate grants of idempotent kinds succeed with AlreadyAwarded set.
// DAILY_LOGIN goes through TriggerDailyLogin so the streak always moves with the ledger;
// ADMIN_ADJUSTMENT carries caller amounts and must use Adjust.
func (e *Engine) Award(ctx context.Context, userID uint, kind EventKind, opts ...AwardOption) (AwardResult, error) {
	switch kind {
	case KindDailyLogin:
		res, err := e.TriggerDailyLogin(ctx, userID)
		return res.AwardResult, err
	case KindAdminAdjustment:
		return AwardResult{}, fmt.Errorf("%w: %s amounts are set through Adjust", ErrInvalidInput, kind)
	}

	var o awardOptions
	for _, opt := range opts {
		opt(&o)
	}
	g, err := e.newGrant(kind, o)
	if err != nil {
		return AwardResult{}, err
	}

	res, err := e.commitGrant(ctx, userID, g)
	if err != nil || res.AlreadyAwarded {
		return res, err
	}

	if g.points > 0 {
		badges, err := e.EvaluateBadges(ctx, userID, res.Points)
		res.Badges = badges
		if err != nil {
			// the award itself is committed; badge evaluation reruns on the next award
			e.log.Error("badge evaluation failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
	return res, nil
}

// Adjust applies a corrective signed delta, recorded as ADMIN_ADJUSTMENT.
// The result may not take points or coins below zero.
func (e *Engine) Adjust(ctx context.Context, userID uint, points, coins int64, reason string) (AwardResult, error) {
	if points == 0 && coins == 0 {
		return AwardResult{}, fmt.Errorf("%w: adjustment is empty", ErrInvalidInput)
	}
	reason = cleanText(reason, maxDescriptionLen)
	if reason == "" {
		return AwardResult{}, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	g, err := e.newGrant(KindAdminAdjustment, awardOptions{description: reason})
	if err != nil {
		return AwardResult{}, err
	}
	g.points, g.coins = points, coins
	g.metadata = map[string]interface{}{"points": points, "coins": coins}

	res, err := e.commitGrant(ctx, userID, g)
	if err != nil {
		return res, err
	}
	if points > 0 {
		badges, err := e.EvaluateBadges(ctx, userID, res.Points)
		res.Badges = badges
		if err != nil {
			e.log.Error("badge evaluation failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
	return res, nil
}

// Events returns the newest ledger rows of a user.
func (e *Engine) Events(ctx context.Context, userID uint, limit int) ([]models.GamificationEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = e.cfg.RecentEventsLimit
	}
	return e.store.RecentEvents(ctx, userID, limit)
}
