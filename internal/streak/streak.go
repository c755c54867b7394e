// Package streak derives consecutive-day activity patterns from raw event
// timestamps: the live streak, the longest historical streak, and per-day
// activity counts.
package streak

import (
	"fmt"
	"sort"
	"time"

	"github.com/lumenlab/lumenos/internal/models"
)

// secondsPerDay converts day ordinals to and from Unix seconds.
const secondsPerDay = 86400

// DayKey is a calendar date counted in whole days since the Unix epoch.
// Two timestamps share a DayKey iff they fall on the same calendar date
// under the analyzer's timezone policy, and consecutive dates always
// differ by exactly one regardless of daylight-saving transitions.
type DayKey int64

// String renders the day key as an ISO date (YYYY-MM-DD).
func (k DayKey) String() string {
	return time.Unix(int64(k)*secondsPerDay, 0).UTC().Format("2006-01-02")
}

// Analyzer buckets timestamps into calendar days and derives streaks.
// The timezone policy and the clock are fixed at construction so every
// computation over an analyzer's lifetime agrees on where one day ends
// and the next begins.
type Analyzer struct {
	loc *time.Location
	now func() time.Time
}

// New creates an analyzer with the given timezone policy and clock.
// A nil location defaults to UTC; a nil clock defaults to time.Now.
func New(loc *time.Location, now func() time.Time) *Analyzer {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Analyzer{loc: loc, now: now}
}

// DayOf returns the calendar day key of t under the analyzer's policy.
func (a *Analyzer) DayOf(t time.Time) DayKey {
	y, m, d := t.In(a.loc).Date()
	return DayKey(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// Location exposes the timezone policy so callers can reason about
// wall-clock hours in the same frame as the day keys.
func (a *Analyzer) Location() *time.Location {
	return a.loc
}

// Compute derives the streak summary for an unordered set of event
// timestamps. Duplicate timestamps and multiple events on one calendar
// day collapse to a single active day.
func (a *Analyzer) Compute(timestamps []time.Time) (models.StreakResult, error) {
	if len(timestamps) == 0 {
		return models.StreakResult{}, nil
	}

	active := make(map[DayKey]struct{}, len(timestamps))
	var lastActive time.Time
	for _, ts := range timestamps {
		if ts.IsZero() {
			return models.StreakResult{}, fmt.Errorf("%w: zero event timestamp", models.ErrValidation)
		}
		active[a.DayOf(ts)] = struct{}{}
		if ts.After(lastActive) {
			lastActive = ts
		}
	}

	today := a.DayOf(a.now())
	_, activeToday := active[today]

	return models.StreakResult{
		Current:     a.currentRun(active, today, activeToday),
		Longest:     longestRun(active),
		LastActive:  lastActive,
		ActiveToday: activeToday,
	}, nil
}

// currentRun counts consecutive active days ending at today or yesterday.
// A streak whose most recent day is older than yesterday is already broken.
func (a *Analyzer) currentRun(active map[DayKey]struct{}, today DayKey, activeToday bool) int {
	cursor := today
	if !activeToday {
		if _, yesterday := active[today-1]; !yesterday {
			return 0
		}
		cursor = today - 1
	}

	run := 0
	for {
		if _, ok := active[cursor]; !ok {
			return run
		}
		run++
		cursor--
	}
}

// longestRun scans the distinct active days in ascending order and
// returns the length of the longest consecutive run, including the
// final open one.
func longestRun(active map[DayKey]struct{}) int {
	days := make([]DayKey, 0, len(active))
	for d := range active {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	longest, run := 0, 0
	for i, d := range days {
		if i > 0 && d == days[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// DailyCounts buckets timestamps into calendar days and counts the
// events on each. Used for activity heatmaps.
func (a *Analyzer) DailyCounts(timestamps []time.Time) (map[DayKey]int, error) {
	counts := make(map[DayKey]int, len(timestamps))
	for _, ts := range timestamps {
		if ts.IsZero() {
			return nil, fmt.Errorf("%w: zero event timestamp", models.ErrValidation)
		}
		counts[a.DayOf(ts)]++
	}
	return counts, nil
}
