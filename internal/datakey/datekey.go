package datakey

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
)

// dateKeyLayout is the string form of a DateKey.
const dateKeyLayout = "2006-01-02"

// DateKey represents a UTC calendar date used to partition stored
// tick / bar data by day.
type DateKey struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDateKey creates a DateKey for the given calendar date.
func NewDateKey(year int, month time.Month, day int) DateKey {
	return DateKey{Year: year, Month: month, Day: day}
}

// DateKeyFromTime creates a DateKey for the UTC calendar date of the given instant.
func DateKeyFromTime(t time.Time) DateKey {
	utc := t.UTC()
	return DateKey{Year: utc.Year(), Month: utc.Month(), Day: utc.Day()}
}

// ParseDateKey parses a DateKey from its YYYY-MM-DD string form.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse(dateKeyLayout, s)
	if err != nil {
		return DateKey{}, errors.Wrapf(err, "not a valid date key: %v", s)
	}
	return DateKeyFromTime(t), nil
}

// String returns the YYYY-MM-DD form of the date key.
func (k DateKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, int(k.Month), k.Day)
}

// StartOfDay returns the UTC instant at 00:00 of the date.
func (k DateKey) StartOfDay() time.Time {
	return time.Date(k.Year, k.Month, k.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether the date is earlier than other.
func (k DateKey) Before(other DateKey) bool {
	return k.StartOfDay().Before(other.StartOfDay())
}

// After reports whether the date is later than other.
func (k DateKey) After(other DateKey) bool {
	return k.StartOfDay().After(other.StartOfDay())
}

// AddDays returns the date n calendar days after the date.
func (k DateKey) AddDays(n int) DateKey {
	return DateKeyFromTime(k.StartOfDay().AddDate(0, 0, n))
}

// GetDateKeys expands an inclusive [from, to] timestamp range into the
// ordered list of date keys covering every calendar day touched by the range.
// A span of one day or less yields a single key for from's date.
func GetDateKeys(from, to time.Time) ([]DateKey, error) {
	if to.Before(from) {
		return nil, errors.New(fmt.Sprintf("invalid date key range: to %v is before from %v", to.UTC(), from.UTC()))
	}
	first := DateKeyFromTime(from)
	spanDays := to.Sub(from).Hours() / 24
	count := int(math.Ceil(spanDays))
	if count < 1 {
		count = 1
	}
	keys := make([]DateKey, 0, count)
	for i := 0; i < count; i++ {
		keys = append(keys, first.AddDays(i))
	}
	return keys, nil
}
