package maintenance

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ryansname/drivectl/src/params"
)

// Map update keys. The first four live in the persistent store;
// KeyOSMDownloadLocations is a request in the ephemeral store.
const (
	KeyMapsSelected         = "MapsSelected"
	KeyPreferredSchedule    = "PreferredSchedule"
	KeyLastMapsUpdate       = "LastMapsUpdate"
	KeyOSMDownloadProgress  = "OSMDownloadProgress"
	KeyOSMDownloadLocations = "OSMDownloadLocations"
)

// Schedule limits when already-downloaded maps are refreshed
type Schedule int

const (
	ScheduleNone Schedule = iota
	ScheduleSunday
	ScheduleFirstOfMonth
)

// due reports whether downloaded maps should be refreshed today. Unknown
// schedules do not restrict the refresh.
func (s Schedule) due(now time.Time) bool {
	switch s {
	case ScheduleNone:
		return false
	case ScheduleSunday:
		return now.Weekday() == time.Sunday
	case ScheduleFirstOfMonth:
		return now.Day() == 1
	default:
		return true
	}
}

// OrdinalDate formats now as "January 2nd, 2006"
func OrdinalDate(now time.Time) string {
	day := now.Day()
	suffix := "th"
	if (day < 4 || day > 20) && (day < 24 || day > 30) {
		suffix = []string{"st", "nd", "rd"}[day%10-1]
	}
	return now.Format("January ") + strconv.Itoa(day) + suffix + now.Format(", 2006")
}

// DirExists returns a check for the offline maps directory
func DirExists(path string) func() bool {
	return func() bool {
		info, err := os.Stat(path)
		return err == nil && info.IsDir()
	}
}

// MapUpdater requests offline map downloads on the configured schedule
type MapUpdater struct {
	Params         params.Store
	Memory         params.Store
	MapsDownloaded func() bool
}

// Update enqueues a download when one is due. It returns whether it did.
// Nothing happens without a map selection, when downloaded maps are not due
// today, when today's date is already recorded, or while a download runs.
func (u *MapUpdater) Update(ctx context.Context, now time.Time) (bool, error) {
	selected, ok, err := u.Params.Get(ctx, KeyMapsSelected)
	if err != nil || !ok {
		return false, err
	}

	schedule, err := u.Params.GetInt(ctx, KeyPreferredSchedule)
	if err != nil {
		return false, err
	}
	if u.MapsDownloaded() && !Schedule(schedule).due(now) {
		return false, nil
	}

	today := OrdinalDate(now)
	last, _, err := u.Params.Get(ctx, KeyLastMapsUpdate)
	if err != nil {
		return false, err
	}
	if last == today {
		return false, nil
	}

	_, downloading, err := u.Params.Get(ctx, KeyOSMDownloadProgress)
	if err != nil || downloading {
		return false, err
	}

	if err := u.Memory.Put(ctx, KeyOSMDownloadLocations, selected); err != nil {
		return false, fmt.Errorf("enqueue map download: %w", err)
	}
	u.Params.PutNonBlocking(KeyLastMapsUpdate, today)
	return true, nil
}
