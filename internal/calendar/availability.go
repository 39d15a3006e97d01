package calendar

import "time"

// BusinessDay возвращает рабочее окно [openHour:00, closeHour:00) в зоне loc
// для календарной даты day (берутся год, месяц и число как есть).
func BusinessDay(day time.Time, openHour, closeHour int, loc *time.Location) (TimeRange, error) {
	if openHour < 0 || closeHour > 24 || openHour >= closeHour {
		return TimeRange{}, ErrBusinessHours
	}
	if loc == nil {
		loc = time.UTC
	}

	y, m, d := day.Date()
	return TimeRange{
		Start: time.Date(y, m, d, openHour, 0, 0, 0, loc),
		End:   time.Date(y, m, d, closeHour, 0, 0, 0, loc),
	}, nil
}

// SplitToTimeSlots нарезает окно на кандидаты длительностью slotDuration,
// начиная с window.Start с шагом step. Кандидат, выходящий за window.End, отбрасывается.
func SplitToTimeSlots(window TimeRange, slotDuration, step time.Duration) ([]TimeRange, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	if step <= 0 {
		return nil, ErrSlotStep
	}
	if !window.End.After(window.Start) {
		return []TimeRange{}, nil
	}

	var slots []TimeRange
	for cur := window.Start; !cur.Add(slotDuration).After(window.End); cur = cur.Add(step) {
		slots = append(slots, TimeRange{Start: cur, End: cur.Add(slotDuration)})
	}
	return slots, nil
}

// FreeSlots: кандидаты из окна, не пересекающиеся ни с одним занятым интервалом.
// Слоты, начинающиеся раньше notBefore, отбрасываются (нулевое значение: без ограничения).
func FreeSlots(
	window TimeRange,
	slotDuration, step time.Duration,
	busy []TimeRange,
	notBefore time.Time,
) ([]TimeRange, error) {
	candidates, err := SplitToTimeSlots(window, slotDuration, step)
	if err != nil {
		return nil, err
	}

	free := make([]TimeRange, 0, len(candidates))
	for _, c := range candidates {
		if !notBefore.IsZero() && c.Start.Before(notBefore) {
			continue
		}
		if overlap, _ := HasOverlap(c, busy); overlap {
			continue
		}
		free = append(free, c)
	}
	return free, nil
}
