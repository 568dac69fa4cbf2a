package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronField is one parsed field of a 5-field cron expression.
type cronField struct {
	wildcard bool
	values   []int
}

func (f cronField) matches(val int) bool {
	if f.wildcard {
		return true
	}
	for _, v := range f.values {
		if v == val {
			return true
		}
	}
	return false
}

func parseCronField(field string) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	parts := strings.Split(field, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return cronField{}, fmt.Errorf("invalid cron field value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return cronField{values: values}, nil
}

type parsedCron struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	var c parsedCron
	var err error
	if c.minute, err = parseCronField(fields[0]); err != nil {
		return parsedCron{}, fmt.Errorf("parsing minute field: %w", err)
	}
	if c.hour, err = parseCronField(fields[1]); err != nil {
		return parsedCron{}, fmt.Errorf("parsing hour field: %w", err)
	}
	if c.dayOfMonth, err = parseCronField(fields[2]); err != nil {
		return parsedCron{}, fmt.Errorf("parsing day-of-month field: %w", err)
	}
	if c.month, err = parseCronField(fields[3]); err != nil {
		return parsedCron{}, fmt.Errorf("parsing month field: %w", err)
	}
	if c.dayOfWeek, err = parseCronField(fields[4]); err != nil {
		return parsedCron{}, fmt.Errorf("parsing day-of-week field: %w", err)
	}
	return c, nil
}

// NextCronTime returns the first time after 'after' matching the expression,
// searching minute-by-minute up to one year ahead.
func NextCronTime(cronExpr string, after time.Time) (time.Time, error) {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if cron.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time found within one year for %q", cronExpr)
}
