package rewards

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EventKind names a reward-granting action.
type EventKind string

const (
	KindDailyLogin       EventKind = "DAILY_LOGIN"
	KindProfileComplete  EventKind = "PROFILE_COMPLETE"
	KindFirstCourse      EventKind = "FIRST_COURSE"
	KindCourseEnroll     EventKind = "COURSE_ENROLL"
	KindLessonComplete   EventKind = "LESSON_COMPLETE"
	KindCourseComplete   EventKind = "COURSE_COMPLETE"
	KindAssignmentSubmit EventKind = "ASSIGNMENT_SUBMIT"
	KindCourseRating     EventKind = "COURSE_RATING"
	KindStreakMilestone  EventKind = "STREAK_MILESTONE"
	KindBadgeEarned      EventKind = "BADGE_EARNED"
	KindReferralBonus    EventKind = "REFERRAL_BONUS"
	KindAdminAdjustment  EventKind = "ADMIN_ADJUSTMENT"
)

// ParseEventKind normalizes user supplied kind names ("daily_login" -> DAILY_LOGIN).
func ParseEventKind(s string) EventKind {
	return EventKind(strings.ToUpper(strings.TrimSpace(s)))
}

// Scope controls how often a kind may be granted to the same user.
type Scope int

const (
	// ScopeRepeatable kinds are granted every time.
	ScopeRepeatable Scope = iota
	// ScopeDaily kinds are granted once per calendar day.
	ScopeDaily
	// ScopeOnce kinds are granted once for the lifetime of the account.
	ScopeOnce
)

func (s Scope) String() string {
	switch s {
	case ScopeDaily:
		return "daily"
	case ScopeOnce:
		return "once"
	default:
		return "repeatable"
	}
}

func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Rule is the catalog entry for one kind.
// KeyField names a metadata entry that narrows the scope, e.g. once per course_id.
type Rule struct {
	Points      int64  `json:"points"`
	Coins       int64  `json:"coins"`
	Scope       Scope  `json:"scope"`
	KeyField    string `json:"key_field,omitempty"`
	Description string `json:"description"`
}

// Catalog maps every known kind to its rule.
type Catalog map[EventKind]Rule

// DefaultCatalog returns the reward amounts used when no override is configured.
func DefaultCatalog() Catalog {
	return Catalog{
		KindDailyLogin:       {Points: 10, Coins: 5, Scope: ScopeDaily, Description: "Daily login"},
		KindProfileComplete:  {Points: 50, Coins: 20, Scope: ScopeOnce, Description: "Completed profile"},
		KindFirstCourse:      {Points: 100, Coins: 50, Scope: ScopeOnce, Description: "Enrolled in first course"},
		KindCourseEnroll:     {Points: 20, Coins: 10, Scope: ScopeOnce, KeyField: "course_id", Description: "Enrolled in a course"},
		KindLessonComplete:   {Points: 5, Coins: 1, Scope: ScopeOnce, KeyField: "lesson_id", Description: "Completed a lesson"},
		KindCourseComplete:   {Points: 200, Coins: 100, Scope: ScopeOnce, KeyField: "course_id", Description: "Completed a course"},
		KindAssignmentSubmit: {Points: 30, Coins: 10, Scope: ScopeOnce, KeyField: "assignment_id", Description: "Submitted an assignment"},
		KindCourseRating:     {Points: 10, Coins: 5, Scope: ScopeOnce, KeyField: "course_id", Description: "Rated a course"},
		KindStreakMilestone:  {Points: 100, Coins: 50, Scope: ScopeDaily, KeyField: "milestone", Description: "Login streak milestone"},
		KindBadgeEarned:      {Points: 25, Coins: 10, Scope: ScopeOnce, KeyField: "badge_id", Description: "Earned a badge"},
		KindReferralBonus:    {Points: 0, Coins: 1000, Scope: ScopeOnce, KeyField: "referred_user_id", Description: "Referral bonus"},
		KindAdminAdjustment:  {Scope: ScopeRepeatable, Description: "Balance adjustment"},
	}
}

// Rule looks up a kind.
func (c Catalog) Rule(kind EventKind) (Rule, bool) {
	r, ok := c[kind]
	return r, ok
}

// Kinds returns the catalog keys in a stable order.
func (c Catalog) Kinds() []EventKind {
	out := make([]EventKind, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// dedupeKey builds the idempotency key stored on the ledger row; "" means no dedupe.
// day is the calendar date in the rewards timezone.
func (r Rule) dedupeKey(kind EventKind, metadata map[string]interface{}, day string) string {
	if r.Scope == ScopeRepeatable {
		return ""
	}
	parts := []string{string(kind)}
	if r.KeyField != "" {
		parts = append(parts, keyValue(metadata[r.KeyField]))
	}
	if r.Scope == ScopeDaily {
		parts = append(parts, day)
	}
	return strings.Join(parts, ":")
}

// keyValue renders a metadata qualifier so that "42", 42 and 42.0 name the same thing.
// JSON numbers arrive as float64.
func keyValue(v interface{}) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.FormatInt(int64(n), 10)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case uint:
		return strconv.FormatUint(uint64(n), 10)
	case uint32:
		return strconv.FormatUint(uint64(n), 10)
	case uint64:
		return strconv.FormatUint(n, 10)
	case json.Number:
		return n.String()
	default:
		return fmt.Sprint(v)
	}
}
