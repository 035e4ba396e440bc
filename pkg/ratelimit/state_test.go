package ratelimit

import (
	"testing"
	"time"
)

func TestQuotaState_Remaining(t *testing.T) {
	tests := []struct {
		name     string
		state    QuotaState
		expected int
	}{
		{"fresh day", QuotaState{CallsMade: 0, Limit: 3000}, 3000},
		{"part used", QuotaState{CallsMade: 1200, Limit: 3000}, 1800},
		{"exactly spent", QuotaState{CallsMade: 3000, Limit: 3000}, 0},
		{"over limit clamps", QuotaState{CallsMade: 3100, Limit: 3000}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Remaining(); got != tt.expected {
				t.Errorf("Remaining() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestQuotaState_Decisions(t *testing.T) {
	tests := []struct {
		name         string
		state        QuotaState
		wantBlock    bool
		wantThrottle bool
		wantHealthy  bool
	}{
		{
			name:        "healthy",
			state:       QuotaState{CallsMade: 100, Limit: 3000},
			wantHealthy: true,
		},
		{
			name:         "under five percent remaining",
			state:        QuotaState{CallsMade: 2900, Limit: 3000},
			wantThrottle: true,
		},
		{
			name:        "exactly five percent remaining",
			state:       QuotaState{CallsMade: 2850, Limit: 3000},
			wantHealthy: true,
		},
		{
			name:      "spent",
			state:     QuotaState{CallsMade: 3000, Limit: 3000},
			wantBlock: true,
		},
		{
			name:      "gateway said 429",
			state:     QuotaState{CallsMade: 10, Limit: 3000, Exhausted: true},
			wantBlock: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.NeedsCriticalBlock(); got != tt.wantBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.wantBlock)
			}
			if got := tt.state.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.wantThrottle)
			}
			if got := tt.state.IsHealthy(); got != tt.wantHealthy {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.wantHealthy)
			}
		})
	}
}

func TestQuotaState_TimeUntilReset(t *testing.T) {
	tests := []struct {
		name    string
		resetAt time.Time
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "reset in future",
			resetAt: time.Now().Add(30 * time.Minute),
			wantMin: 29 * time.Minute,
			wantMax: 31 * time.Minute,
		},
		{
			name:    "reset in past",
			resetAt: time.Now().Add(-10 * time.Second),
			wantMin: 0,
			wantMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &QuotaState{ResetAt: tt.resetAt}
			got := state.TimeUntilReset()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TimeUntilReset() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestNextReset(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid day",
			now:  time.Date(2024, 5, 10, 13, 45, 0, 0, time.UTC),
			want: time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "month rollover",
			now:  time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC),
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "non-UTC input",
			now:  time.Date(2024, 5, 10, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)),
			want: time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextReset(tt.now); !got.Equal(tt.want) {
				t.Errorf("NextReset() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeys(t *testing.T) {
	now := time.Date(2024, 5, 10, 13, 0, 0, 0, time.UTC)

	if got := callsKey("abcd1234", now); got != "marvel:quota:abcd1234:2024-05-10:calls" {
		t.Errorf("callsKey() = %q", got)
	}
	if got := exhaustedKey("abcd1234", now); got != "marvel:quota:abcd1234:2024-05-10:exhausted" {
		t.Errorf("exhaustedKey() = %q", got)
	}
}
