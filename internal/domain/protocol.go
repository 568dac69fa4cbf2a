package domain

import "time"

// Protocol is a yield protocol the market pools are staked with. Rows are
// seeded at startup and refreshed out of band; the sync core only reads the
// APY values.
type Protocol struct {
	ID          string
	Name        string
	DisplayName string
	BaseAPY     float64
	IsActive    bool
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
