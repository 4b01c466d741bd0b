package domain

import (
	"fmt"
	"time"
)

// FormatClock renders d as mm:ss, flooring to whole seconds. Negative durations render as 00:00.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// FormatMillis is FormatClock for millisecond counts.
func FormatMillis(ms int64) string {
	return FormatClock(time.Duration(ms) * time.Millisecond)
}
