package hssf

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Julian day number of serial 0 in each date system; 1900 is offset so
// that serial 61 is 1900-03-01, past the phantom 1900-02-29.
var jdnDelta = [2]int{2415080 - 61, 2416482 - 1}

const (
	daysTooLarge1900 = 2958466
	daysTooLarge1904 = 2958466 - 1462
)

var (
	epoch1904       = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch1900       = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	epoch1900Minus1 = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

var daysInMonth = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DateError is the base of the date conversion errors.
type DateError struct {
	Message string
}

func (e *DateError) Error() string { return "hssf: " + e.Message }

// DateNegative reports a serial below zero.
type DateNegative struct{ DateError }

// DateAmbiguous reports a 1900-system serial before 1900-03-01, where
// Excel's phantom 1900-02-29 makes the day ambiguous.
type DateAmbiguous struct{ DateError }

// DateTooLarge reports a serial in year 10000 or later.
type DateTooLarge struct{ DateError }

// DateBadTuple reports an invalid calendar date or time of day.
type DateBadTuple struct{ DateError }

func mode(date1904 bool) int {
	if date1904 {
		return 1
	}
	return 0
}

func leap(y int) bool { return y%4 == 0 && (y%100 != 0 || y%400 == 0) }

// DateTuple is a calendar date and time of day to the nearest second.
// A pure time has a zero date.
type DateTuple struct {
	Year, Month, Day     int
	Hour, Minute, Second int
}

// DateAsTuple converts a date serial. Serials in [0, 1) are times of day
// and give a zero date.
func DateAsTuple(serial float64, date1904 bool) (DateTuple, error) {
	dm := mode(date1904)
	if serial == 0 {
		return DateTuple{}, nil
	}
	if serial < 0 {
		return DateTuple{}, &DateNegative{DateError{fmt.Sprintf("date serial < 0: %f", serial)}}
	}
	days := int(serial)
	frac := serial - float64(days)
	seconds := int(math.Round(frac * 86400.0))
	var t DateTuple
	if seconds == 86400 {
		days++
	} else {
		minutes := seconds / 60
		t.Second = seconds % 60
		t.Hour = minutes / 60
		t.Minute = minutes % 60
	}
	tooLarge := daysTooLarge1900
	if date1904 {
		tooLarge = daysTooLarge1904
	}
	if days >= tooLarge {
		return DateTuple{}, &DateTooLarge{DateError{fmt.Sprintf("date serial too large: %f", serial)}}
	}
	if days == 0 {
		return t, nil
	}
	if days < 61 && !date1904 {
		return DateTuple{}, &DateAmbiguous{DateError{fmt.Sprintf("1900 leap-year problem: %f", serial)}}
	}
	jdn := days + jdnDelta[dm]
	yreg := ((((jdn*4+274277)/146097)*3/4)+jdn+1363)*4 + 3
	mp := ((yreg%1461)/4)*535 + 333
	t.Day = ((mp % 16384) / 535) + 1
	mp >>= 14
	if mp >= 10 {
		t.Year, t.Month = (yreg/1461)-4715, mp-9
	} else {
		t.Year, t.Month = (yreg/1461)-4716, mp+3
	}
	return t, nil
}

// DateFromExcel converts a date serial to a time in UTC with millisecond
// resolution. 1900-system serials below 60 count from 1899-12-31, later
// ones skip the phantom 1900-02-29.
func DateFromExcel(serial float64, date1904 bool) (time.Time, error) {
	if serial < 0 {
		return time.Time{}, &DateNegative{DateError{fmt.Sprintf("date serial < 0: %f", serial)}}
	}
	epoch := epoch1904
	if !date1904 {
		epoch = epoch1900
		if serial >= 60 {
			epoch = epoch1900Minus1
		}
	}
	days := int(serial)
	ms := int(math.Round((serial - float64(days)) * 86400000.0))
	return epoch.AddDate(0, 0, days).Add(time.Duration(ms) * time.Millisecond), nil
}

// DateFromTuple converts a calendar date to a serial.
func DateFromTuple(year, month, day int, date1904 bool) (float64, error) {
	if year == 0 && month == 0 && day == 0 {
		return 0, nil
	}
	bad := func(what string) error {
		return &DateBadTuple{DateError{fmt.Sprintf("invalid %s: (%d, %d, %d)", what, year, month, day)}}
	}
	if year < 1900 || year > 9999 {
		return 0, bad("year")
	}
	if month < 1 || month > 12 {
		return 0, bad("month")
	}
	maxDay := daysInMonth[month]
	if month == 2 && leap(year) {
		maxDay = 29
	}
	if day < 1 || day > maxDay {
		return 0, bad("day")
	}
	yp, mp := year+4716, month-3
	if month <= 2 {
		yp, mp = yp-1, month+9
	}
	jdn := (1461*yp/4) + ((979*mp+16)/32) + day - 1364 - (((yp+184)/100)*3/4)
	days := jdn - jdnDelta[mode(date1904)]
	if days <= 0 {
		return 0, bad("date")
	}
	if days < 61 && !date1904 {
		return 0, &DateAmbiguous{DateError{fmt.Sprintf("before 1900-03-01: (%d, %d, %d)", year, month, day)}}
	}
	return float64(days), nil
}

// TimeFromTuple converts a time of day to a fraction of a day.
func TimeFromTuple(hour, minute, second int) (float64, error) {
	if hour < 0 || hour >= 24 || minute < 0 || minute >= 60 || second < 0 || second >= 60 {
		return 0, &DateBadTuple{DateError{fmt.Sprintf("invalid time: (%d, %d, %d)", hour, minute, second)}}
	}
	return ((float64(second)/60.0+float64(minute))/60.0 + float64(hour)) / 24.0, nil
}

// DateToExcel converts t, read in its own location, to a serial.
func DateToExcel(t time.Time, date1904 bool) (float64, error) {
	d, err := DateFromTuple(t.Year(), int(t.Month()), t.Day(), date1904)
	if err != nil {
		return 0, err
	}
	tod, err := TimeFromTuple(t.Hour(), t.Minute(), t.Second())
	if err != nil {
		return 0, err
	}
	ms := float64(t.Nanosecond()/int(time.Millisecond)) / 86400000.0
	return d + tod + ms, nil
}

// Built-in number formats that display dates or times.
var builtinDateFormats = map[int]bool{
	0x0E: true, 0x0F: true, 0x10: true, 0x11: true, 0x12: true,
	0x13: true, 0x14: true, 0x15: true, 0x16: true,
	0x2D: true, 0x2E: true, 0x2F: true,
}

var (
	dateChars = "ymdhsYMDHS"
	numChars  = "0#?"
	skipChars = "$-+/():, "

	nonDateFormats = map[string]bool{
		"0.00E+00": true, "##0.0E+0": true,
		"General": true, "GENERAL": true, "general": true,
		"@": true,
	}

	bracketed = regexp.MustCompile(`\[.*?\]`)
)

// IsDateFormat reports whether number format idx, with format string s,
// displays a date or time.
//
// Quoted literals, escaped characters and [bracketed] parts are ignored;
// what remains must have date characters (ymdhs) and no digit
// placeholders (0#?).
func IsDateFormat(idx int, s string) bool {
	if builtinDateFormats[idx] {
		return true
	}
	if s == "" {
		return false
	}
	var b strings.Builder
	state := 0
	for _, c := range s {
		switch state {
		case 0:
			switch {
			case c == '"':
				state = 1
			case c == '\\' || c == '_' || c == '*':
				state = 2
			case strings.ContainsRune(skipChars, c):
			default:
				b.WriteRune(c)
			}
		case 1:
			if c == '"' {
				state = 0
			}
		case 2:
			state = 0
		}
	}
	reduced := bracketed.ReplaceAllString(b.String(), "")
	if nonDateFormats[reduced] {
		return false
	}
	dates, nums := 0, 0
	for _, c := range reduced {
		switch {
		case strings.ContainsRune(dateChars, c):
			dates++
		case strings.ContainsRune(numChars, c):
			nums++
		}
	}
	return dates > 0 && nums == 0
}
