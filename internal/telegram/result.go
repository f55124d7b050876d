package telegram

import (
	"fmt"
	"time"
)

// Time is the raw civil time carried by a telegram. No zone or century is
// attached. Weekday runs 1 (Monday) to 7 (Sunday); Year is the two-digit
// year within the century.
type Time struct {
	Hour    int `json:"hour" yaml:"hour"`
	Minute  int `json:"minute" yaml:"minute"`
	Day     int `json:"day" yaml:"day"`
	Weekday int `json:"weekday" yaml:"weekday"`
	Month   int `json:"month" yaml:"month"`
	Year    int `json:"year" yaml:"year"`
}

// Result is a decoded telegram.
//
// Antenna is 0 for the primary transmitter and 1 for the backup antenna or
// maintenance. TimeChange is 1 when a CET/CEST switch happens at the end of
// the current hour. SummerTime is derived from bits 17-18 as
// (2*bit18 + bit17) - 1, so 0 means CEST, 1 means CET, and -1 or 2 mark the
// two invalid announcements.
type Result struct {
	Time       Time `json:"time" yaml:"time"`
	Antenna    int  `json:"antenna" yaml:"antenna"`
	TimeChange int  `json:"time_change" yaml:"time_change"`
	SummerTime int  `json:"summer_time" yaml:"summer_time"`
}

var (
	zoneCET  = time.FixedZone("CET", 1*60*60)
	zoneCEST = time.FixedZone("CEST", 2*60*60)
)

// Location returns the fixed zone announced by the summer-time flag.
func (r Result) Location() (*time.Location, error) {
	switch r.SummerTime {
	case 0:
		return zoneCEST, nil
	case 1:
		return zoneCET, nil
	default:
		return nil, fmt.Errorf("%w: zone announcement %d", ErrRange, r.SummerTime)
	}
}

// Civil converts the result into a time.Time in the announced zone. century
// is the full-year offset added to the two-digit year, e.g. 2000. Unlike
// Decode, Civil uses strict calendar bounds and checks that the weekday
// matches the date.
func (r Result) Civil(century int) (time.Time, error) {
	loc, err := r.Location()
	if err != nil {
		return time.Time{}, err
	}

	t := r.Time
	switch {
	case t.Hour > 23:
		return time.Time{}, fmt.Errorf("%w: hour %d", ErrRange, t.Hour)
	case t.Minute > 59:
		return time.Time{}, fmt.Errorf("%w: minute %d", ErrRange, t.Minute)
	case t.Month < 1 || t.Month > 12:
		return time.Time{}, fmt.Errorf("%w: month %d", ErrRange, t.Month)
	case t.Day < 1:
		return time.Time{}, fmt.Errorf("%w: day %d", ErrRange, t.Day)
	}

	ct := time.Date(century+t.Year, time.Month(t.Month), t.Day, t.Hour, t.Minute, 0, 0, loc)
	if ct.Day() != t.Day {
		return time.Time{}, fmt.Errorf("%w: day %d in month %d", ErrRange, t.Day, t.Month)
	}
	// time.Weekday counts Sunday as 0.
	if wd := int(ct.Weekday()); (wd+6)%7+1 != t.Weekday {
		return time.Time{}, fmt.Errorf("%w: weekday %d, date falls on %s", ErrRange, t.Weekday, ct.Weekday())
	}
	return ct, nil
}
