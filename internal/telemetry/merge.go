package telemetry

import "sort"

// Merge combines per-window results into one ChannelData. Absent (nil)
// windows are skipped; labels come from the first present window. Each field
// is sorted by time and deduplicated on exact timestamp, keeping the first
// occurrence. Merge returns nil when every window is absent.
func Merge(windows []*ChannelData) *ChannelData {
	var merged *ChannelData
	for _, w := range windows {
		if w == nil {
			continue
		}
		if merged == nil {
			merged = &ChannelData{
				Name:   w.Name,
				Fields: make(map[FieldKey]string, len(w.Fields)),
				Data:   make(map[FieldKey][]Sample, len(w.Data)),
			}
			for k, label := range w.Fields {
				merged.Fields[k] = label
			}
		}
		for k, samples := range w.Data {
			merged.Data[k] = append(merged.Data[k], samples...)
		}
	}
	if merged == nil {
		return nil
	}

	for k, samples := range merged.Data {
		merged.Data[k] = dedupSorted(samples)
	}
	for k := range merged.Fields {
		if _, ok := merged.Data[k]; !ok {
			merged.Data[k] = []Sample{}
		}
	}
	return merged
}

func dedupSorted(samples []Sample) []Sample {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Date.Before(samples[j].Date)
	})
	out := samples[:0]
	for i, s := range samples {
		if i > 0 && s.Date.Equal(out[len(out)-1].Date) {
			continue
		}
		out = append(out, s)
	}
	return out
}
