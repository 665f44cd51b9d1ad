package services

import (
	"reflect"
	"testing"
	"time"

	"github.com/openseva/seva-backend/internal/types"
)

func photoAt(captured *time.Time, sha string) *types.ActivityPhoto {
	ph := &types.ActivityPhoto{CapturedAt: captured}
	if sha != "" {
		ph.SHA256 = &sha
	}
	return ph
}

func tp(t time.Time) *time.Time { return &t }

func TestEvaluatePhotoFraud(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	expires := time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)

	cases := []struct {
		name   string
		photos []*types.ActivityPhoto
		want   []string
	}{
		{
			name: "clean_set",
			photos: []*types.ActivityPhoto{
				photoAt(tp(start.Add(1*time.Hour)), "a"),
				photoAt(tp(start.Add(2*time.Hour)), "b"),
				photoAt(tp(start.Add(3*time.Hour)), "c"),
			},
			want: []string{},
		},
		{
			name: "photo_on_wrong_day",
			photos: []*types.ActivityPhoto{
				photoAt(tp(start.Add(1*time.Hour)), "a"),
				photoAt(tp(start.AddDate(0, 0, 1)), "b"),
			},
			want: []string{FlagPhotoNotSameDay, FlagPhotoOutsideWindow},
		},
		{
			name: "photo_before_start_same_day",
			photos: []*types.ActivityPhoto{
				photoAt(tp(start.Add(-30*time.Minute)), "a"),
			},
			want: []string{FlagPhotoOutsideWindow},
		},
		{
			name: "duplicate_hashes",
			photos: []*types.ActivityPhoto{
				photoAt(tp(start.Add(1*time.Hour)), "same"),
				photoAt(tp(start.Add(2*time.Hour)), "same"),
			},
			want: []string{FlagDuplicatePhoto},
		},
		{
			name: "missing_timestamp",
			photos: []*types.ActivityPhoto{
				photoAt(nil, "a"),
				photoAt(tp(start.Add(1*time.Hour)), "b"),
			},
			want: []string{FlagPhotoMissingTimestamp},
		},
		{
			name: "flags_sorted_and_deduped",
			photos: []*types.ActivityPhoto{
				photoAt(tp(start.AddDate(0, 0, 1)), "same"),
				photoAt(tp(start.AddDate(0, 0, 2)), "same"),
				photoAt(nil, ""),
			},
			want: []string{FlagDuplicatePhoto, FlagPhotoMissingTimestamp, FlagPhotoNotSameDay, FlagPhotoOutsideWindow},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluatePhotoFraud(tc.photos, start, expires)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("EvaluatePhotoFraud=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestDurationHours(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if got := DurationHours(nil); got != 0 {
		t.Fatalf("empty set: got %v, want 0", got)
	}
	if got := DurationHours([]time.Time{base}); got != 0 {
		t.Fatalf("single timestamp: got %v, want 0", got)
	}

	times := []time.Time{base.Add(2 * time.Hour), base, base.Add(90 * time.Minute)}
	if got := DurationHours(times); got != 2 {
		t.Fatalf("span: got %v, want 2", got)
	}
}
