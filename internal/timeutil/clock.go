package timeutil

import (
	"time"
)

// Plant is the location of the plant clock. It defaults to IST (UTC+5:30)
// and is replaced by SetLocation from configuration.
var Plant *time.Location

func init() {
	var err error
	Plant, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback: create fixed zone if Asia/Kolkata not available
		Plant = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// SetLocation switches the plant clock to the named zone.
func SetLocation(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	Plant = loc
	return nil
}

// Now returns the current time in the plant location
func Now() time.Time {
	return time.Now().In(Plant)
}

// StartOfDay returns the start of day (00:00:00) in the plant location for the given time
func StartOfDay(t time.Time) time.Time {
	p := t.In(Plant)
	return time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, Plant)
}

// DayBounds returns [start, end) of the plant-local day containing t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate parses a YYYY-MM-DD date in the plant location.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, Plant)
}

// Common layouts
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)
