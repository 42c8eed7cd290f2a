package telemetry

import "time"

// MaxWindow is the widest range the upstream API serves in one request.
const MaxWindow = 7 * 24 * time.Hour

// Window is an inclusive sub-range of a request.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SplitRange cuts [start, end] into consecutive windows no wider than max.
// Adjacent windows share their boundary instant; Merge drops the duplicate.
func SplitRange(start, end time.Time, max time.Duration) []Window {
	if max <= 0 {
		max = MaxWindow
	}
	if !end.After(start) {
		return []Window{{Start: start, End: end}}
	}

	var windows []Window
	for cur := start; cur.Before(end); {
		next := cur.Add(max)
		if next.After(end) {
			next = end
		}
		windows = append(windows, Window{Start: cur, End: next})
		cur = next
	}
	return windows
}
