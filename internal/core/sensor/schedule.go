package sensor

// Schedule rate-limits publishing. A tick is due when strictly more than one
// period has passed since the last due tick; the last tick starts at zero.
type Schedule struct {
	period float64
	last   float64
}

// NewSchedule builds a schedule for rateHz. Non-positive rates fall back to
// DefaultPublishRate.
func NewSchedule(rateHz float64) Schedule {
	if rateHz <= 0 {
		rateHz = DefaultPublishRate
	}
	return Schedule{period: 1 / rateHz}
}

// Due reports whether now is past the period and, if so, records now as the
// last publish time.
func (s *Schedule) Due(now float64) bool {
	if now-s.last > s.period {
		s.last = now
		return true
	}
	return false
}

func (s *Schedule) Period() float64 { return s.period }

func (s *Schedule) Last() float64 { return s.last }
