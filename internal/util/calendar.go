package util

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DayLayout is the calendar-day format used in cache keys and file names.
const DayLayout = "2006-01-02"

// Clock abstracts the wall clock so cache freshness can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// DayKey formats t as a local calendar day.
func DayKey(t time.Time) string {
	return t.Local().Format(DayLayout)
}

// ParseDayKey parses a YYYY-MM-DD day in the local time zone.
func ParseDayKey(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.Local)
}

// DaysBetween returns the whole number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// SplitDaySuffix splits a "<key>_<YYYY-MM-DD>[.ext]" file name into its key
// and day. ok is false when the name has no valid trailing day.
func SplitDaySuffix(name string) (key string, day time.Time, ok bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	i := strings.LastIndex(stem, "_")
	if i <= 0 {
		return "", time.Time{}, false
	}
	d, err := ParseDayKey(stem[i+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return stem[:i], d, true
}

// CacheFileName joins a cache key, day and extension.
func CacheFileName(key, day, ext string) string {
	return fmt.Sprintf("%s_%s%s", key, day, ext)
}
