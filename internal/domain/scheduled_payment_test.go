package domain

import (
	"testing"
	"time"
)

func TestPaymentStatus_Valid(t *testing.T) {
	tests := []struct {
		status   PaymentStatus
		expected bool
	}{
		{PaymentStatusPending, true},
		{PaymentStatusProcessing, true},
		{PaymentStatusCompleted, true},
		{PaymentStatusFailed, true},
		{PaymentStatusSkipped, true},
		{PaymentStatus("CANCELLED"), false},
		{PaymentStatus(""), false},
		{PaymentStatus("pending"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.expected {
				t.Errorf("PaymentStatus(%q).Valid() = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestPaymentStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   PaymentStatus
		expected bool
	}{
		{PaymentStatusPending, false},
		{PaymentStatusProcessing, false},
		{PaymentStatusCompleted, true},
		{PaymentStatusFailed, true},
		{PaymentStatusSkipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.expected {
				t.Errorf("PaymentStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     PaymentStatus
		to       PaymentStatus
		wantCode string
	}{
		{
			name: "pending to processing",
			from: PaymentStatusPending,
			to:   PaymentStatusProcessing,
		},
		{
			name: "pending to skipped",
			from: PaymentStatusPending,
			to:   PaymentStatusSkipped,
		},
		{
			name: "processing to completed",
			from: PaymentStatusProcessing,
			to:   PaymentStatusCompleted,
		},
		{
			name: "processing back to pending for retry",
			from: PaymentStatusProcessing,
			to:   PaymentStatusPending,
		},
		{
			name: "processing to failed",
			from: PaymentStatusProcessing,
			to:   PaymentStatusFailed,
		},
		{
			name: "processing to skipped",
			from: PaymentStatusProcessing,
			to:   PaymentStatusSkipped,
		},
		{
			name:     "pending cannot jump to completed",
			from:     PaymentStatusPending,
			to:       PaymentStatusCompleted,
			wantCode: ECONFLICT,
		},
		{
			name:     "pending cannot jump to failed",
			from:     PaymentStatusPending,
			to:       PaymentStatusFailed,
			wantCode: ECONFLICT,
		},
		{
			name:     "completed is terminal",
			from:     PaymentStatusCompleted,
			to:       PaymentStatusSkipped,
			wantCode: ECONFLICT,
		},
		{
			name:     "completed cannot be reprocessed",
			from:     PaymentStatusCompleted,
			to:       PaymentStatusProcessing,
			wantCode: ECONFLICT,
		},
		{
			name:     "failed is terminal",
			from:     PaymentStatusFailed,
			to:       PaymentStatusSkipped,
			wantCode: ECONFLICT,
		},
		{
			name:     "skipped is terminal",
			from:     PaymentStatusSkipped,
			to:       PaymentStatusPending,
			wantCode: ECONFLICT,
		},
		{
			name:     "unknown from status",
			from:     PaymentStatus("CANCELLED"),
			to:       PaymentStatusPending,
			wantCode: EINVALID,
		},
		{
			name:     "unknown to status",
			from:     PaymentStatusPending,
			to:       PaymentStatus("ON_HOLD"),
			wantCode: EINVALID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition("payment.transition", tt.from, tt.to)

			if tt.wantCode == "" {
				if err != nil {
					t.Errorf("ValidateTransition(%s -> %s) = %v, want nil", tt.from, tt.to, err)
				}
				return
			}

			if err == nil {
				t.Fatalf("ValidateTransition(%s -> %s) = nil, want code %q", tt.from, tt.to, tt.wantCode)
			}

			if got := ErrorCode(err); got != tt.wantCode {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestPaymentFrequency_Valid(t *testing.T) {
	tests := []struct {
		frequency PaymentFrequency
		expected  bool
	}{
		{FrequencyWeekly, true},
		{FrequencyBiweekly, true},
		{FrequencyMonthly, true},
		{PaymentFrequency("DAILY"), false},
		{PaymentFrequency(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			if got := tt.frequency.Valid(); got != tt.expected {
				t.Errorf("PaymentFrequency(%q).Valid() = %v, want %v", tt.frequency, got, tt.expected)
			}
		})
	}
}

func TestPaymentFrequency_Advance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		frequency PaymentFrequency
		from      time.Time
		expected  time.Time
	}{
		{
			name:      "weekly adds seven days",
			frequency: FrequencyWeekly,
			from:      start,
			expected:  time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "biweekly adds fourteen days",
			frequency: FrequencyBiweekly,
			from:      start,
			expected:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly adds one calendar month",
			frequency: FrequencyMonthly,
			from:      start,
			expected:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "monthly normalizes past month end",
			frequency: FrequencyMonthly,
			from:      time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			expected:  time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "weekly crosses year boundary",
			frequency: FrequencyWeekly,
			from:      time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC),
			expected:  time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frequency.Advance(tt.from); !got.Equal(tt.expected) {
				t.Errorf("Advance(%s) = %s, want %s", tt.from.Format(time.DateOnly), got.Format(time.DateOnly), tt.expected.Format(time.DateOnly))
			}
		})
	}
}

func TestPaymentFrequency_AdvanceMonthlySequence(t *testing.T) {
	// Three monthly installments starting 2024-01-01 land on the first of
	// each month.
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expected := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	for i, want := range expected {
		if !due.Equal(want) {
			t.Errorf("installment %d due %s, want %s", i, due.Format(time.DateOnly), want.Format(time.DateOnly))
		}
		due = FrequencyMonthly.Advance(due)
	}
}
