package domain

import (
	"testing"
)

func TestDefaultRecurringBillingConfig(t *testing.T) {
	cfg := DefaultRecurringBillingConfig()

	if cfg.MaxRetryAttempts != 3 {
		t.Errorf("MaxRetryAttempts = %d, want 3", cfg.MaxRetryAttempts)
	}

	want := []int{1, 3, 7}
	if len(cfg.RetryDelayDays) != len(want) {
		t.Fatalf("RetryDelayDays = %v, want %v", cfg.RetryDelayDays, want)
	}
	for i := range want {
		if cfg.RetryDelayDays[i] != want[i] {
			t.Errorf("RetryDelayDays[%d] = %d, want %d", i, cfg.RetryDelayDays[i], want[i])
		}
	}

	if cfg.NotifyOnFailure || cfg.NotifyOnSuccess {
		t.Error("notification flags should default to off")
	}
}

func TestRecurringBillingConfig_RetryDelayFor(t *testing.T) {
	tests := []struct {
		name       string
		config     RecurringBillingConfig
		retryCount int
		expected   int
	}{
		{
			name:       "first retry waits one day",
			config:     DefaultRecurringBillingConfig(),
			retryCount: 0,
			expected:   1,
		},
		{
			name:       "second retry waits three days",
			config:     DefaultRecurringBillingConfig(),
			retryCount: 1,
			expected:   3,
		},
		{
			name:       "third retry waits seven days",
			config:     DefaultRecurringBillingConfig(),
			retryCount: 2,
			expected:   7,
		},
		{
			name:       "beyond the ladder uses the last element",
			config:     DefaultRecurringBillingConfig(),
			retryCount: 9,
			expected:   7,
		},
		{
			name:       "empty ladder falls back to seven days",
			config:     RecurringBillingConfig{MaxRetryAttempts: 3},
			retryCount: 0,
			expected:   7,
		},
		{
			name:       "custom ladder",
			config:     RecurringBillingConfig{RetryDelayDays: []int{2, 5}},
			retryCount: 1,
			expected:   5,
		},
		{
			name:       "custom ladder beyond end",
			config:     RecurringBillingConfig{RetryDelayDays: []int{2, 5}},
			retryCount: 4,
			expected:   5,
		},
		{
			name:       "negative count clamps to first element",
			config:     DefaultRecurringBillingConfig(),
			retryCount: -1,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.RetryDelayFor(tt.retryCount); got != tt.expected {
				t.Errorf("RetryDelayFor(%d) = %d, want %d", tt.retryCount, got, tt.expected)
			}
		})
	}
}

func TestRecurringBillingConfig_WithDefaults(t *testing.T) {
	base := RecurringBillingConfig{
		MaxRetryAttempts: 3,
		RetryDelayDays:   []int{1, 3, 7},
		NotifyOnFailure:  true,
	}

	t.Run("zero config inherits everything", func(t *testing.T) {
		merged := RecurringBillingConfig{}.WithDefaults(base)

		if merged.MaxRetryAttempts != 3 {
			t.Errorf("MaxRetryAttempts = %d, want 3", merged.MaxRetryAttempts)
		}
		if len(merged.RetryDelayDays) != 3 {
			t.Errorf("RetryDelayDays = %v, want base ladder", merged.RetryDelayDays)
		}
		if !merged.NotifyOnFailure {
			t.Error("NotifyOnFailure should inherit from base")
		}
	})

	t.Run("explicit fields win", func(t *testing.T) {
		override := RecurringBillingConfig{
			MaxRetryAttempts: 5,
			RetryDelayDays:   []int{2},
		}
		merged := override.WithDefaults(base)

		if merged.MaxRetryAttempts != 5 {
			t.Errorf("MaxRetryAttempts = %d, want 5", merged.MaxRetryAttempts)
		}
		if len(merged.RetryDelayDays) != 1 || merged.RetryDelayDays[0] != 2 {
			t.Errorf("RetryDelayDays = %v, want [2]", merged.RetryDelayDays)
		}
	})

	t.Run("notification flags merge by or", func(t *testing.T) {
		override := RecurringBillingConfig{NotifyOnSuccess: true}
		merged := override.WithDefaults(base)

		if !merged.NotifyOnFailure {
			t.Error("NotifyOnFailure from base should survive the merge")
		}
		if !merged.NotifyOnSuccess {
			t.Error("NotifyOnSuccess from override should survive the merge")
		}
	})

	t.Run("negative retry attempts inherit", func(t *testing.T) {
		override := RecurringBillingConfig{MaxRetryAttempts: -1}
		merged := override.WithDefaults(base)

		if merged.MaxRetryAttempts != 3 {
			t.Errorf("MaxRetryAttempts = %d, want 3", merged.MaxRetryAttempts)
		}
	})
}
