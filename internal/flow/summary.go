package flow

// Summary holds the headline level figures of a range, in meters.
type Summary struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	// Maximum is floored at zero.
	Maximum float64 `json:"maximum"`
}

// Summarize computes the summary of a level series. An empty series yields
// zeros.
func Summarize(levels []float64) Summary {
	if len(levels) == 0 {
		return Summary{}
	}
	var s Summary
	var sum float64
	for _, v := range levels {
		sum += v
		if v > s.Maximum {
			s.Maximum = v
		}
	}
	s.Current = levels[len(levels)-1]
	s.Average = sum / float64(len(levels))
	return s
}
