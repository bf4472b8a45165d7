package model

import "time"

// DaysPerWeek is the number of weekday indices (0 through 6).
const DaysPerWeek = 7

// DaySet is the set of selected weekday indices. Index i is selected when
// DaySet[i] is true, so only 0..6 can ever be represented.
type DaySet [DaysPerWeek]bool

// DaysOf returns a DaySet with the given indices selected. Indices outside
// 0..6 are ignored; use ValidDay to reject them first.
func DaysOf(days ...int) DaySet {
	var s DaySet
	for _, d := range days {
		if ValidDay(d) {
			s[d] = true
		}
	}
	return s
}

// ValidDay reports whether d is a weekday index.
func ValidDay(d int) bool {
	return d >= 0 && d < DaysPerWeek
}

// Selected returns the selected indices in ascending order.
func (s DaySet) Selected() []int {
	out := make([]int, 0, DaysPerWeek)
	for i, on := range s {
		if on {
			out = append(out, i)
		}
	}
	return out
}

// FormState is an immutable snapshot of the filter form, taken each time the
// build action fires. Empty regex fields mean "not set".
type FormState struct {
	// CalendarURL is the source ICS feed, unencoded.
	CalendarURL string

	Days DaySet

	NameRegex        string
	DescriptionRegex string
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string
	UID      string

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string

	AllDay bool

	// Start / End are in the preview display timezone.
	Start time.Time
	End   time.Time
}
