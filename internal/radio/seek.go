package radio

import (
	"time"

	"github.com/llehouerou/syncradio/internal/store"
)

// ComputeSeekPosition returns where playback of st should be at now.
//
// The result is never negative, and never past duration when known is true.
func ComputeSeekPosition(st store.PlaybackState, now time.Time, duration time.Duration, known bool) time.Duration {
	elapsed := now.Sub(time.UnixMilli(st.StartTime))
	if elapsed < 0 {
		return 0
	}
	if known && elapsed > duration {
		return max(duration, 0)
	}
	return elapsed
}
