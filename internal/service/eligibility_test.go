package service

import (
	"testing"
	"time"

	"github.com/spec-kit/repair-portal/internal/config"
	"github.com/spec-kit/repair-portal/internal/domain"
)

func TestEvaluateEligibilityReturnWindow(t *testing.T) {
	policy := config.DefaultPolicy()
	now := time.Date(2026, time.March, 20, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		purchase time.Time
		want     domain.WarrantyStatus
	}{
		{"same day", now, domain.WarrantyEligibleForReturn},
		{"exactly window", now.AddDate(0, 0, -15), domain.WarrantyEligibleForReturn},
		{"partial day past window", now.AddDate(0, 0, -15).Add(-time.Minute), domain.WarrantyReturnPeriodExpired},
		{"window plus one", now.AddDate(0, 0, -16), domain.WarrantyReturnPeriodExpired},
		{"twenty days", now.AddDate(0, 0, -20), domain.WarrantyReturnPeriodExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateEligibility(policy, tc.purchase, domain.ServiceTypeReturn, now)
			if got != tc.want {
				t.Fatalf("EvaluateEligibility = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEvaluateEligibilityWarrantyMonths(t *testing.T) {
	policy := config.DefaultPolicy()
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		purchase time.Time
		want     domain.WarrantyStatus
	}{
		{"new", now, domain.WarrantyUnderWarranty},
		{"exactly 24 months", time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC), domain.WarrantyUnderWarranty},
		{"25 months", time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), domain.WarrantyOutOfWarranty},
		{"30 months", now.AddDate(0, -30, 0), domain.WarrantyOutOfWarranty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateEligibility(policy, tc.purchase, domain.ServiceTypeRepair, now)
			if got != tc.want {
				t.Fatalf("EvaluateEligibility = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEvaluateEligibilityUsesPolicy(t *testing.T) {
	policy := config.PolicyConfig{WarrantyMonths: 1, ReturnWindowDays: 1, CapacityLimit: 1}
	now := time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC)

	if got := EvaluateEligibility(policy, now.AddDate(0, 0, -2), domain.ServiceTypeReturn, now); got != domain.WarrantyReturnPeriodExpired {
		t.Fatalf("return = %q", got)
	}
	if got := EvaluateEligibility(policy, now.AddDate(0, -2, 0), domain.ServiceTypeRepair, now); got != domain.WarrantyOutOfWarranty {
		t.Fatalf("repair = %q", got)
	}
}

func TestDaysSincePurchaseIsAbsolute(t *testing.T) {
	now := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	if got := DaysSincePurchase(now.AddDate(0, 0, 3), now); got != 3 {
		t.Fatalf("DaysSincePurchase = %d, want 3", got)
	}
}

// Purchase dates arrive as calendar dates at UTC midnight while now is an
// instant, so any time past midnight on day 15 counts as day 16.
func TestReturnWindowCountsFromPurchaseMidnight(t *testing.T) {
	policy := config.DefaultPolicy()
	purchase := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	if got := EvaluateEligibility(policy, purchase, domain.ServiceTypeReturn, purchase.AddDate(0, 0, 15)); got != domain.WarrantyEligibleForReturn {
		t.Fatalf("midnight of day 15 = %q", got)
	}
	if got := EvaluateEligibility(policy, purchase, domain.ServiceTypeReturn, purchase.AddDate(0, 0, 15).Add(time.Minute)); got != domain.WarrantyReturnPeriodExpired {
		t.Fatalf("day 15 after midnight = %q", got)
	}
	if got := DaysSincePurchase(purchase, purchase.AddDate(0, 0, 14).Add(23*time.Hour)); got != 15 {
		t.Fatalf("days = %d", got)
	}
}
