// Package yield estimates the interest market pools earn while staked with
// an external protocol, and sweeps those estimates into the serving store.
package yield

import "time"

// Estimate is the projected yield for one market pool at a given APY.
type Estimate struct {
	DailyYield     float64
	ProjectedTotal float64
	DaysRemaining  float64
}

// Calculate projects yield for a pool staked at apy (percent, e.g. 5.2)
// until endDate. Pool units are the ledger's smallest denomination. A zero
// pool, a non-positive APY, or an endDate in the past all yield zero values.
func Calculate(pool int64, apy float64, endDate *time.Time, now time.Time) Estimate {
	if pool <= 0 || apy <= 0 {
		return Estimate{}
	}

	daily := float64(pool) * apy / 365 / 100

	var days float64
	if endDate != nil {
		if remaining := endDate.Sub(now); remaining > 0 {
			days = remaining.Hours() / 24
		}
	}

	return Estimate{
		DailyYield:     daily,
		ProjectedTotal: daily * days,
		DaysRemaining:  days,
	}
}
