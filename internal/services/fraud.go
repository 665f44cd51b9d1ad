package services

import (
	"sort"
	"time"

	"github.com/openseva/seva-backend/internal/types"
)

// Fraud reason codes persisted on flagged sessions.
const (
	FlagPhotoNotSameDay       = "photo_not_same_day"
	FlagPhotoOutsideWindow    = "photo_outside_time_window"
	FlagDuplicatePhoto        = "duplicate_photo_detected"
	FlagPhotoMissingTimestamp = "photo_missing_timestamp"
)

// EvaluatePhotoFraud checks an evidence photo set against the session's time
// window and duplication rules. It is stateless: the result is the union of
// flags across all photos, sorted and deduplicated. An empty result means the
// evidence needs no human review.
func EvaluatePhotoFraud(photos []*types.ActivityPhoto, startedAt, expiresAt time.Time) []string {
	seen := map[string]bool{}
	hashCounts := map[string]int{}

	for _, ph := range photos {
		if ph == nil {
			continue
		}
		if ph.SHA256 != nil && *ph.SHA256 != "" {
			hashCounts[*ph.SHA256]++
		}
	}

	startDay := startedAt.In(time.UTC).Truncate(24 * time.Hour)

	for _, ph := range photos {
		if ph == nil {
			continue
		}
		if ph.CapturedAt == nil {
			seen[FlagPhotoMissingTimestamp] = true
			continue
		}
		captured := *ph.CapturedAt

		if !captured.In(time.UTC).Truncate(24 * time.Hour).Equal(startDay) {
			seen[FlagPhotoNotSameDay] = true
		}
		if captured.Before(startedAt) || captured.After(expiresAt) {
			seen[FlagPhotoOutsideWindow] = true
		}
		if ph.SHA256 != nil && hashCounts[*ph.SHA256] > 1 {
			seen[FlagDuplicatePhoto] = true
		}
	}

	flags := make([]string, 0, len(seen))
	for f := range seen {
		flags = append(flags, f)
	}
	sort.Strings(flags)
	return flags
}

// DurationHours is the span between the earliest and latest capture
// timestamps. Fewer than two distinct timestamps yield 0; the result is never
// negative.
func DurationHours(photoTimes []time.Time) float64 {
	if len(photoTimes) < 2 {
		return 0
	}
	earliest := photoTimes[0]
	latest := photoTimes[0]
	for _, t := range photoTimes[1:] {
		if t.Before(earliest) {
			earliest = t
		}
		if t.After(latest) {
			latest = t
		}
	}
	hours := latest.Sub(earliest).Hours()
	if hours < 0 {
		return 0
	}
	return hours
}
