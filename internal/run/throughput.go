package run

import "time"

type completion struct {
	at    time.Time
	count int
}

// throughputWindow keeps completion records inside a sliding window and
// reports a per-minute rate.
type throughputWindow struct {
	span    time.Duration
	records []completion
}

func newThroughputWindow(span time.Duration) *throughputWindow {
	if span <= 0 {
		span = time.Minute
	}
	return &throughputWindow{span: span}
}

func (w *throughputWindow) add(at time.Time, count int) {
	if count <= 0 {
		return
	}
	w.records = append(w.records, completion{at: at, count: count})
}

// perMinute prunes expired records and scales the in-window count to a
// one-minute rate. Before a full window has elapsed since start the elapsed
// time is used instead, so early readings are not understated.
func (w *throughputWindow) perMinute(now, start time.Time) float64 {
	cutoff := now.Add(-w.span)
	drop := 0
	for drop < len(w.records) && !w.records[drop].at.After(cutoff) {
		drop++
	}
	w.records = w.records[drop:]

	total := 0
	for _, r := range w.records {
		total += r.count
	}
	if total == 0 {
		return 0
	}
	span := w.span
	if elapsed := now.Sub(start); elapsed > 0 && elapsed < span {
		span = elapsed
	}
	if span < time.Second {
		span = time.Second
	}
	return float64(total) / span.Minutes()
}

func (w *throughputWindow) reset() {
	w.records = nil
}
