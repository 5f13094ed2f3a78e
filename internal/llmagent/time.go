package llmagent

import "time"

// nowUTC centralizes the single "what time is it" call the runner makes per
// tool execution, so tests can see it's the only clock read in the hot path.
func nowUTC() time.Time {
	return time.Now().UTC()
}
