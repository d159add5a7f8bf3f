// Package availability computes bookable slots from a working-hours
// policy and the calendar's busy periods. Everything here is a pure
// function of its inputs; the calendar lookup lives in the service
// layer.
package availability

import "time"

// Interval is a half-open [Start, End) period, typically a busy block
// reported by the external calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. Covers
// partial overlap on either side and containment in either direction.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && end.After(i.Start)
}

// Slot is a candidate bookable interval, normalized to UTC.
type Slot struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Policy is the fixed working-hours policy: a daily window in a
// reference timezone, weekdays only, fixed slot length and a buffer
// between consecutive slots.
type Policy struct {
	Location     *time.Location
	StartHour    int
	EndHour      int
	SlotDuration time.Duration
	Buffer       time.Duration
}

// DefaultPolicy is 10:00-18:00 IST, 30-minute slots, 15-minute buffer.
func DefaultPolicy() Policy {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+1800)
	}
	return Policy{
		Location:     loc,
		StartHour:    10,
		EndHour:      18,
		SlotDuration: 30 * time.Minute,
		Buffer:       15 * time.Minute,
	}
}

// step is the stride between consecutive slot starts.
func (p Policy) step() time.Duration {
	return p.SlotDuration + p.Buffer
}

type Resolver struct {
	policy Policy
	now    func() time.Time
}

func NewResolver(policy Policy) *Resolver {
	return &Resolver{policy: policy, now: time.Now}
}

// NewResolverAt pins the resolution clock; used by tests and by
// callers that need a stable "now" across a request.
func NewResolverAt(policy Policy, now func() time.Time) *Resolver {
	return &Resolver{policy: policy, now: now}
}

// Slots walks each weekday in [from, to] (dates taken in the policy
// timezone), builds that day's working window, and emits every slot
// whose full stride (duration plus trailing buffer) fits in the
// window, that starts after the resolution time, and that intersects
// no busy period. Output is ordered and in UTC.
func (r *Resolver) Slots(from, to time.Time, busy []Interval) []Slot {
	p := r.policy
	now := r.now()

	first := dateIn(from, p.Location)
	last := dateIn(to, p.Location)

	slots := []Slot{}
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		windowStart := time.Date(day.Year(), day.Month(), day.Day(), p.StartHour, 0, 0, 0, p.Location)
		windowEnd := time.Date(day.Year(), day.Month(), day.Day(), p.EndHour, 0, 0, 0, p.Location)

		for t := windowStart; !t.Add(p.step()).After(windowEnd); t = t.Add(p.step()) {
			slotEnd := t.Add(p.SlotDuration)

			// Never offer a slot that has already begun.
			if !t.After(now) {
				continue
			}

			if anyOverlap(busy, t, slotEnd) {
				continue
			}

			slots = append(slots, Slot{
				StartTime: t.UTC(),
				EndTime:   slotEnd.UTC(),
			})
		}
	}

	return slots
}

func anyOverlap(busy []Interval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// dateIn truncates an instant to midnight of its calendar date in loc.
func dateIn(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
