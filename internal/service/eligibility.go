package service

import (
	"math"
	"time"

	"github.com/spec-kit/repair-portal/internal/config"
	"github.com/spec-kit/repair-portal/internal/domain"
)

const day = 24 * time.Hour

// EvaluateEligibility derives the warranty label for a product purchased at
// purchaseDate. Both thresholds are inclusive.
func EvaluateEligibility(policy config.PolicyConfig, purchaseDate time.Time, serviceType domain.ServiceType, now time.Time) domain.WarrantyStatus {
	if serviceType == domain.ServiceTypeReturn {
		if DaysSincePurchase(purchaseDate, now) <= policy.ReturnWindowDays {
			return domain.WarrantyEligibleForReturn
		}
		return domain.WarrantyReturnPeriodExpired
	}
	if MonthsSincePurchase(purchaseDate, now) <= policy.WarrantyMonths {
		return domain.WarrantyUnderWarranty
	}
	return domain.WarrantyOutOfWarranty
}

// DaysSincePurchase rounds any partial day up.
func DaysSincePurchase(purchaseDate, now time.Time) int {
	elapsed := now.Sub(purchaseDate)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	return int(math.Ceil(float64(elapsed) / float64(day)))
}

// MonthsSincePurchase is the calendar-month difference; the day of month is ignored.
func MonthsSincePurchase(purchaseDate, now time.Time) int {
	now = now.In(purchaseDate.Location())
	return (now.Year()-purchaseDate.Year())*12 + int(now.Month()) - int(purchaseDate.Month())
}
