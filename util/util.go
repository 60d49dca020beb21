package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

//TimeFormat stores a correctly formatted timestamp
const TimeFormat string = "2006-01-02-T15:04:05-0700"

//DayFormat stores a correctly formatted timestamp for the day
const DayFormat string = "2006-01-02"

//HourFormat is the layout of an hour bucket key. Lexicographic and
//chronological order coincide for keys in the same location.
const HourFormat string = "2006-01-02 15"

//DisplayFormat is used when printing instants to operators
const DisplayFormat string = "2006-01-02 15:04:05"

// inputTimeFormats lists the layouts accepted for time arguments on the
// command line, most specific first
var inputTimeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	HourFormat,
	DayFormat,
}

// Exists returns true if file or directory exists. An error is returned
// when the path cannot be checked.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// IsDir returns true if argument is a directory
func IsDir(path string) bool {
	file, err := os.Stat(path)
	if err != nil {
		return false
	}
	return file.IsDir()
}

//MinDuration returns the smaller of two durations
func MinDuration(a time.Duration, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// ParseTime parses a command line time argument in the given location.
// Integers are read as milliseconds since the epoch, matching the log format.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.Local
	}

	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(0, ms*int64(time.Millisecond)).In(loc), nil
	}

	for _, layout := range inputTimeFormats {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized time value '%s'", value)
}

const (
	day  = time.Minute * 60 * 24
	year = 365 * day
)

// FormatDuration properly prints a given time.Duration
// https://gist.github.com/harshavardhana/327e0577c4fed9211f65#gistcomment-2557682
func FormatDuration(d time.Duration) string {
	if d < day {
		return d.String()
	}

	var b strings.Builder

	if d >= year {
		years := d / year
		fmt.Fprintf(&b, "%dy", years)
		d -= years * year
	}

	days := d / day
	d -= days * day
	fmt.Fprintf(&b, "%dd%s", days, d)

	return b.String()
}
