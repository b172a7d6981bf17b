package epoch

import (
	"time"

	"hourly-quiz-service/internal/domain"
)

// DefaultWindow is one calendar hour.
const DefaultWindow = time.Hour

// Clock maps wall-clock time onto fixed windows aligned to the Unix epoch (UTC).
// With an hourly window every epoch starts at the top of a UTC hour.
type Clock struct {
	window time.Duration
}

// NewClock returns a clock with the given window. Windows shorter than a second
// fall back to DefaultWindow, since epochs are stored with second precision.
func NewClock(window time.Duration) Clock {
	if window < time.Second {
		window = DefaultWindow
	}
	return Clock{window: window.Truncate(time.Second)}
}

// Window returns the configured window length.
func (c Clock) Window() time.Duration {
	if c.window == 0 {
		return DefaultWindow
	}
	return c.window
}

// Current returns the epoch containing now. It is monotonic in now.
func (c Clock) Current(now time.Time) domain.Epoch {
	w := int64(c.Window() / time.Second)
	secs := now.Unix()
	q := secs / w
	if secs%w < 0 {
		q--
	}
	return domain.Epoch(q * w)
}

// End returns the first instant of the epoch after e.
func (c Clock) End(e domain.Epoch) time.Time {
	return e.Start().Add(c.Window())
}

// Next returns the epoch that follows e.
func (c Clock) Next(e domain.Epoch) domain.Epoch {
	return domain.Epoch(int64(e) + int64(c.Window()/time.Second))
}
