package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "icalfilter/internal/log"
	"icalfilter/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are converted to.
	// If nil, time.UTC is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult lists expanded occurrences sorted by start, and the UIDs
// whose series hit the cap.
type ExpandResult struct {
	Occurrences     []model.Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences expands single and RRULE-based events into concrete
// occurrences inside the configured range, applying EXDATEs and
// RECURRENCE-ID overrides.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := make(map[string][]ParsedEvent)
	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			bases[ev.UID] = append(bases[ev.UID], ev)
		}
	}

	for uid, evs := range bases {
		truncated := false
		for _, ev := range evs {
			var occ []model.Occurrence
			var hitCap bool
			if ev.RawRRule == "" {
				occ = expandSingle(ev, overrides[uid], cfg)
			} else {
				occ, hitCap = expandRecurring(ev, overrides[uid], cfg)
			}
			truncated = truncated || hitCap
			result.Occurrences = append(result.Occurrences, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.Slice(result.Occurrences, func(i, j int) bool {
		a, b := result.Occurrences[i], result.Occurrences[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.UID < b.UID
	})
	sort.Strings(result.TruncatedEvents)
	return result, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Occurrence {
	start, end := ev.Start, ev.End
	if o, ok := findOverride(overrides, start); ok {
		ev, start, end = o, o.Start, o.End
	}
	if !overlaps(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.Occurrence{makeOccurrence(ev, start, end, cfg.DisplayLocation)}
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	opt, err := rrule.StrToROptionInLocation(ev.RawRRule, ev.Start.Location())
	if err != nil {
		appLog.Warn("expand: bad RRULE, keeping first instance only", "uid", ev.UID, "rrule", ev.RawRRule, "reason", err)
		return expandSingle(ev, overrides, cfg), false
	}
	opt.Dtstart = ev.Start

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Warn("expand: bad RRULE, keeping first instance only", "uid", ev.UID, "rrule", ev.RawRRule, "reason", err)
		return expandSingle(ev, overrides, cfg), false
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.Occurrence, 0, len(starts))
	for _, s := range starts {
		e := s.Add(dur)
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, 1)
		}

		inst, is, ie := ev, s, e
		if o, ok := findOverride(overrides, s); ok {
			inst, is, ie = o, o.Start, o.End
		}
		out = append(out, makeOccurrence(inst, is, ie, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverride returns the override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Occurrence {
	s := start.In(loc)
	// All-day events keep their calendar date regardless of display zone.
	if ev.AllDay {
		s = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	}
	return model.Occurrence{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: s.Format(time.RFC3339Nano),
		Summary:     ev.Summary,
		Description: ev.Description,
		AllDay:      ev.AllDay,
		Start:       s,
		End:         s.Add(end.Sub(start)),
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
