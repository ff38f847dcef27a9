package clock

import "time"

// Clock stamps score records. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}
