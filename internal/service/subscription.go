package service

import (
	"strings"
	"time"
)

// FinancialYearEnd returns the last second of the financial year (1 April to
// 31 March) containing now, in now's location.
func FinancialYearEnd(now time.Time) time.Time {
	year := now.Year()
	if now.Month() >= time.April {
		year++
	}
	return time.Date(year, time.March, 31, 23, 59, 59, 0, now.Location())
}

// SubscriptionExpiry runs annual and coordinator plans to the financial year
// end. Every other plan lasts one calendar month.
func SubscriptionExpiry(planID string, now time.Time) time.Time {
	id := strings.ToLower(planID)
	if strings.Contains(id, "annual") || strings.Contains(id, "yearly") || strings.Contains(id, "coordinator") {
		return FinancialYearEnd(now)
	}
	return now.AddDate(0, 1, 0)
}
