package calendar

import "time"

// BuildChain раскладывает цепочку услуг от start: каждая следующая начинается
// ровно в момент окончания предыдущей.
func BuildChain(start time.Time, durations []time.Duration) ([]TimeRange, error) {
	if start.IsZero() {
		return nil, ErrInvalidTimeRange
	}

	segments := make([]TimeRange, 0, len(durations))
	cur := start
	for _, d := range durations {
		if d <= 0 {
			return nil, ErrSlotDuration
		}
		end := cur.Add(d)
		segments = append(segments, TimeRange{Start: cur, End: end})
		cur = end
	}
	return segments, nil
}
