package domain

import (
	"fmt"
	"sort"
	"time"
)

// ReferencePeriod is the inclusive date interval used as the climatology
// baseline.
type ReferencePeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ReferenceYears builds the period covering every instant of the years
// first through last.
func ReferenceYears(first, last int) (ReferencePeriod, error) {
	if last < first {
		return ReferencePeriod{}, fmt.Errorf("reference period %d-%d: end before start: %w", first, last, ErrInvalidRequest)
	}
	return ReferencePeriod{
		Start: time.Date(first, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(last+1, time.January, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond),
	}, nil
}

// Contains reports whether t lies in the period, bounds included.
func (p ReferencePeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// String renders the period as "1991-2020" when it spans whole years.
func (p ReferencePeriod) String() string {
	return fmt.Sprintf("%d-%d", p.Start.Year(), p.End.Year())
}

// DaysInMonth returns the number of days in the Gregorian month containing t.
func DaysInMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}

// DaysInYear returns 365 or 366.
func DaysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}

// MonthStart truncates t to the first instant of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Season is a meteorological season.
type Season int

// Seasons in storage order. DJF of year Y spans December Y-1 to February Y.
const (
	DJF Season = iota
	MAM
	JJA
	SON
)

// SeasonLabels are the season-axis labels in storage order.
var SeasonLabels = []string{"DJF", "MAM", "JJA", "SON"}

func (s Season) String() string { return SeasonLabels[s] }

// SeasonOf returns the season of month m and the year the season is assigned
// to. December belongs to the following year's DJF.
func SeasonOf(year int, m time.Month) (Season, int) {
	switch m {
	case time.December:
		return DJF, year + 1
	case time.January, time.February:
		return DJF, year
	case time.March, time.April, time.May:
		return MAM, year
	case time.June, time.July, time.August:
		return JJA, year
	default:
		return SON, year
	}
}

// SeasonMonths returns the three month starts making up season s of seasonYear.
func SeasonMonths(s Season, seasonYear int) [3]time.Time {
	m := func(y int, mo time.Month) time.Time { return time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC) }
	switch s {
	case DJF:
		return [3]time.Time{m(seasonYear-1, time.December), m(seasonYear, time.January), m(seasonYear, time.February)}
	case MAM:
		return [3]time.Time{m(seasonYear, time.March), m(seasonYear, time.April), m(seasonYear, time.May)}
	case JJA:
		return [3]time.Time{m(seasonYear, time.June), m(seasonYear, time.July), m(seasonYear, time.August)}
	default:
		return [3]time.Time{m(seasonYear, time.September), m(seasonYear, time.October), m(seasonYear, time.November)}
	}
}

const (
	minMonthlyDeltaDays = 28
	maxMonthlyDeltaDays = 31
)

// IsMonthly reports whether consecutive timestamps are a month apart: the
// median and the full range of the deltas, in whole days, lie within 28-31.
func IsMonthly(times []time.Time) bool {
	if len(times) < 2 {
		return false
	}
	deltas := make([]int, len(times)-1)
	for i := 1; i < len(times); i++ {
		deltas[i-1] = int(times[i].Sub(times[i-1]).Hours() / 24)
	}
	sort.Ints(deltas)
	median := deltas[len(deltas)/2]
	in := func(d int) bool { return d >= minMonthlyDeltaDays && d <= maxMonthlyDeltaDays }
	return in(median) && in(deltas[0]) && in(deltas[len(deltas)-1])
}

// IsDaily reports whether every consecutive delta is exactly one day.
func IsDaily(times []time.Time) bool {
	if len(times) < 2 {
		return false
	}
	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) != 24*time.Hour {
			return false
		}
	}
	return true
}

// MonthlyTimes returns the month starts from first to last inclusive.
func MonthlyTimes(first, last time.Time) []time.Time {
	var out []time.Time
	for t := MonthStart(first); !t.After(last); t = t.AddDate(0, 1, 0) {
		out = append(out, t)
	}
	return out
}
