package engine

import "time"

// Clock supplies wall-clock time so time-driven logic can be tested
// against a fake.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location != nil {
		return time.Now().In(c.Location)
	}
	return time.Now()
}

// MinuteOfDay reduces a timestamp to minutes since midnight.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// DateKey formats a timestamp as the schedule date key.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
