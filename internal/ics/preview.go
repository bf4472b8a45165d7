package ics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"icalfilter/internal/model"
)

// maxPreviewNames bounds the distinct event names returned in a preview.
const maxPreviewNames = 200

// Preview summarizes a source feed to help choose weekdays and patterns.
type Preview struct {
	URL             string    `json:"url"`
	FromCache       bool      `json:"from_cache"`
	EventCount      int       `json:"event_count"`
	OccurrenceCount int       `json:"occurrence_count"`
	RangeStart      time.Time `json:"range_start"`
	RangeEnd        time.Time `json:"range_end"`
	Timezone        string    `json:"timezone"`

	// Weekdays counts occurrences per weekday index, 0 = Sunday, matching
	// the day-<i> checkboxes.
	Weekdays [model.DaysPerWeek]int `json:"weekdays"`

	// Names lists distinct event summaries, sorted.
	Names          []string `json:"names"`
	NamesTruncated bool     `json:"names_truncated,omitempty"`
	TruncatedUIDs  []string `json:"truncated_uids,omitempty"`
}

// PreviewOptions configures Previewer.Preview.
type PreviewOptions struct {
	Location    *time.Location
	HorizonDays int
	// Now anchors the range; zero means time.Now().
	Now time.Time
}

// Previewer fetches, parses and expands a feed into a Preview.
type Previewer struct {
	fetcher *Fetcher
}

// NewPreviewer wraps a Fetcher.
func NewPreviewer(f *Fetcher) *Previewer {
	return &Previewer{fetcher: f}
}

// Preview fetches rawURL and summarizes the occurrences within
// [now, now+HorizonDays].
func (p *Previewer) Preview(ctx context.Context, rawURL string, opts PreviewOptions) (Preview, error) {
	src := Source{ID: RedactURL(rawURL), URL: rawURL}

	res, err := p.fetcher.Fetch(ctx, src)
	if err != nil {
		return Preview{}, fmt.Errorf("fetch feed: %w", err)
	}

	events, err := ParseICS(src, res.Body)
	if err != nil {
		return Preview{}, fmt.Errorf("parse feed: %w", err)
	}

	pv, err := BuildPreview(events, opts)
	if err != nil {
		return Preview{}, err
	}
	pv.URL = rawURL
	pv.FromCache = res.FromCache
	return pv, nil
}

// BuildPreview expands events over the horizon and tallies them.
func BuildPreview(events []ParsedEvent, opts PreviewOptions) (Preview, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = 28
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.In(loc)

	pv := Preview{
		RangeStart: now,
		RangeEnd:   now.AddDate(0, 0, horizon),
		Timezone:   loc.String(),
	}

	exp, err := ExpandOccurrences(events, ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      pv.RangeStart,
		RangeEnd:        pv.RangeEnd,
	})
	if err != nil {
		return Preview{}, err
	}

	uids := make(map[string]struct{})
	for _, ev := range events {
		uids[ev.UID] = struct{}{}
	}
	pv.EventCount = len(uids)
	pv.OccurrenceCount = len(exp.Occurrences)
	pv.TruncatedUIDs = exp.TruncatedEvents

	names := make(map[string]struct{})
	for _, occ := range exp.Occurrences {
		pv.Weekdays[int(occ.Start.Weekday())]++
		if occ.Summary != "" {
			names[occ.Summary] = struct{}{}
		}
	}

	pv.Names = make([]string, 0, len(names))
	for n := range names {
		pv.Names = append(pv.Names, n)
	}
	sort.Strings(pv.Names)
	if len(pv.Names) > maxPreviewNames {
		pv.Names = pv.Names[:maxPreviewNames]
		pv.NamesTruncated = true
	}

	return pv, nil
}
