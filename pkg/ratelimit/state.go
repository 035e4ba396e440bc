// Package ratelimit tracks the Marvel API daily call quota.
// Calls are counted per account and per UTC day in Redis so that several
// connector runs sharing one key pair see the same budget. A 429 from the
// gateway marks the day as exhausted regardless of the local count.
package ratelimit

import (
	"fmt"
	"time"
)

// Redis key layout for quota state.
const (
	RedisKeyPrefix = "marvel:quota"
)

const (
	// DefaultDailyLimit is the public tier allowance.
	DefaultDailyLimit = 3000

	// ThrottlePercent applies throttling when fewer than this share of calls remain.
	ThrottlePercent = 5

	// ThrottleDelay is the pause applied to each call while throttling.
	ThrottleDelay = 1 * time.Second
)

// QuotaState represents the daily call budget for one account.
type QuotaState struct {
	// CallsMade counts calls recorded today.
	CallsMade int `json:"calls_made"`

	// Limit is the configured daily allowance.
	Limit int `json:"limit"`

	// ResetAt is the next UTC midnight.
	ResetAt time.Time `json:"reset_at"`

	// Exhausted is set after the gateway answered 429 today.
	Exhausted bool `json:"exhausted"`
}

// Remaining returns the number of calls left today, never negative.
func (s *QuotaState) Remaining() int {
	r := s.Limit - s.CallsMade
	if r < 0 {
		return 0
	}
	return r
}

// NeedsCriticalBlock returns true if no more calls may be made today.
func (s *QuotaState) NeedsCriticalBlock() bool {
	return s.Exhausted || s.Remaining() <= 0
}

// NeedsThrottling returns true when the budget is nearly spent.
func (s *QuotaState) NeedsThrottling() bool {
	if s.NeedsCriticalBlock() {
		return false
	}
	return s.Remaining()*100 < s.Limit*ThrottlePercent
}

// IsHealthy reports whether calls proceed without restriction.
func (s *QuotaState) IsHealthy() bool {
	return !s.NeedsCriticalBlock() && !s.NeedsThrottling()
}

// TimeUntilReset returns the duration until the quota resets.
// Returns 0 if the reset time has already passed.
func (s *QuotaState) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}

// NextReset returns the UTC midnight following now.
func NextReset(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// callsKey returns the Redis key counting calls for account on now's UTC day.
func callsKey(account string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s:calls", RedisKeyPrefix, account, now.UTC().Format("2006-01-02"))
}

// exhaustedKey returns the Redis key flagging a 429 for account on now's UTC day.
func exhaustedKey(account string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%s:exhausted", RedisKeyPrefix, account, now.UTC().Format("2006-01-02"))
}
