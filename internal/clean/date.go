package clean

import (
	"database/sql/driver"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// Date is a calendar date that may be NULL.
type Date struct {
	civil.Date
	Valid bool
}

// Value implements driver.Valuer; valid dates are sent as midnight UTC.
func (d Date) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.In(time.UTC), nil
}

func (d Date) String() string {
	if !d.Valid {
		return "NULL"
	}
	return d.Date.String()
}

var (
	// A trailing clock component ("10:22", "T10:22:05.123", " 3:04 PM") is dropped.
	timeSuffixRe = regexp.MustCompile(`(?:[T ]+\d{1,2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:\s*[AaPp][Mm])?(?:Z|[+-]\d{2}:?\d{2})?)$`)

	numericDateRe = regexp.MustCompile(`^(\d{1,4})([-/.])(\d{1,2})([-/.])(\d{1,4})$`)
	compactDateRe = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	dayMonNameRe  = regexp.MustCompile(`^(\d{1,2})[-/. ]+([A-Za-z]{3,9})[-/., ]+(\d{2,4})$`)
	monNameDayRe  = regexp.MustCompile(`^([A-Za-z]{3,9})[-/. ]+(\d{1,2}),?[-/. ]+(\d{2,4})$`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// DayFirst parses s resolving D/M ambiguity in favour of the day:
// "03-04-2024" is 3 April 2024. Year-first ISO input keeps its order. When
// the day-first reading is impossible but month-first is valid ("12/25/2024")
// the month-first reading is used. Anything else is NULL.
func DayFirst(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	s = strings.TrimSpace(timeSuffixRe.ReplaceAllString(s, ""))

	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		if m[2] != m[4] {
			return Date{}
		}
		a, b, c := m[1], m[3], m[5]
		if len(a) == 4 {
			return build(atoi(a), atoi(b), atoi(c))
		}
		if len(a) > 2 || (len(c) != 2 && len(c) != 4) {
			return Date{}
		}
		y := year(c)
		if d := build(y, atoi(b), atoi(a)); d.Valid {
			return d
		}
		return build(y, atoi(a), atoi(b))
	}
	if m := compactDateRe.FindStringSubmatch(s); m != nil {
		return build(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := dayMonNameRe.FindStringSubmatch(s); m != nil {
		mon, ok := monthNames[strings.ToLower(m[2])]
		if !ok || len(m[3]) == 3 {
			return Date{}
		}
		return build(year(m[3]), int(mon), atoi(m[1]))
	}
	if m := monNameDayRe.FindStringSubmatch(s); m != nil {
		mon, ok := monthNames[strings.ToLower(m[1])]
		if !ok || len(m[3]) == 3 {
			return Date{}
		}
		return build(year(m[3]), int(mon), atoi(m[2]))
	}
	return Date{}
}

func build(y, m, d int) Date {
	cd := civil.Date{Year: y, Month: time.Month(m), Day: d}
	if y < 1 || !cd.IsValid() {
		return Date{}
	}
	return Date{Date: cd, Valid: true}
}

// year expands two-digit years the way time.Parse does for "06":
// 69-99 map to 19xx, 00-68 to 20xx.
func year(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		if y >= 69 {
			return 1900 + y
		}
		return 2000 + y
	}
	return y
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
