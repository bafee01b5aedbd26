package core

import (
	"fmt"
	"sort"
	"time"
)

const (
	workHoursPerDay   = 8
	minutesPerWorkDay = workHoursPerDay * 60
)

// WorkItem is one unit of outstanding print work: a part to print for one
// order, expressed in print batches. Quantities here are batches, not finished
// parts. BuildWorkItems performs that conversion.
type WorkItem struct {
	PartID            string        `json:"part_id"`
	PartName          string        `json:"part_name"`
	PrintTimeMinutes  int           `json:"print_time_minutes"` // per batch
	QuantityNeeded    int           `json:"quantity_needed"`
	QuantityCompleted int           `json:"quantity_completed"`
	OrderID           string        `json:"order_id"`
	Priority          OrderPriority `json:"priority"`
	DueDate           *time.Time    `json:"due_date,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Remaining returns the number of batches still to print.
func (w WorkItem) Remaining() int {
	return w.QuantityNeeded - w.QuantityCompleted
}

// PrintTimeNeeded returns total minutes of printer time still required.
func (w WorkItem) PrintTimeNeeded() int {
	r := w.Remaining()
	if r <= 0 {
		return 0
	}
	return r * w.PrintTimeMinutes
}

// ScheduledJob is a WorkItem placed on the calendar.
type ScheduledJob struct {
	WorkItem
	ScheduledStart time.Time `json:"scheduled_start"`
	EstimatedEnd   time.Time `json:"estimated_end"`
	IsPastDeadline bool      `json:"is_past_deadline"`
}

// DaySchedule summarizes one working day's assigned load.
type DaySchedule struct {
	Date             time.Time      `json:"date"`
	Jobs             []ScheduledJob `json:"jobs"` // jobs starting this day
	TotalMinutes     int            `json:"total_minutes"`
	AvailableMinutes int            `json:"available_minutes"`
	PrinterCount     int            `json:"printer_count"`
}

// ScheduleResult is the full output of a scheduling pass.
type ScheduleResult struct {
	Jobs []ScheduledJob `json:"scheduled_jobs"`
	Days []DaySchedule  `json:"daily_schedule"`
}

// AvailablePrinters filters the pool to machines that count toward capacity.
func AvailablePrinters(printers []Printer) []Printer {
	var out []Printer
	for _, p := range printers {
		if p.CapacityEligible() {
			out = append(out, p)
		}
	}
	return out
}

// BuildWorkItems converts per-part demand into scheduler work items, one per
// contributing order, converting finished-part quantities to print batches.
func BuildWorkItems(demands []Demand) []WorkItem {
	var items []WorkItem
	for _, d := range demands {
		perPrint := d.PartsPerPrint
		if perPrint < 1 {
			perPrint = 1
		}
		for _, o := range d.Orders {
			if o.QuantityNeeded <= 0 {
				continue
			}
			items = append(items, WorkItem{
				PartID:           d.PartID,
				PartName:         d.PartName,
				PrintTimeMinutes: d.PrintTimeMinutes,
				QuantityNeeded:   (o.QuantityNeeded + perPrint - 1) / perPrint,
				OrderID:          o.OrderID,
				Priority:         o.Priority,
				DueDate:          o.DueDate,
				CreatedAt:        o.CreatedAt,
			})
		}
	}
	return items
}

// Schedule greedily packs outstanding work onto calendar days. Capacity is a
// single shared pool (eligible printers × 8h) that drains continuously across
// the sorted queue: later items are pushed out by earlier ones, and weekends
// carry no capacity at all. The function is pure and safe for concurrent callers.
func Schedule(items []WorkItem, printers []Printer, start time.Time) ScheduleResult {
	// Floor of 1 printer keeps the schedule finite when none are registered.
	printerCount := len(AvailablePrinters(printers))
	if printerCount < 1 {
		printerCount = 1
	}
	dailyCapacity := printerCount * minutesPerWorkDay

	queue := make([]WorkItem, 0, len(items))
	for _, it := range items {
		if it.Remaining() > 0 {
			queue = append(queue, it)
		}
	}

	// Single stable sort over the triple key: priority, due date (nulls last),
	// creation time.
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if pa, pb := PriorityRank(a.Priority), PriorityRank(b.Priority); pa != pb {
			return pa < pb
		}
		switch {
		case a.DueDate != nil && b.DueDate != nil:
			if !a.DueDate.Equal(*b.DueDate) {
				return a.DueDate.Before(*b.DueDate)
			}
		case a.DueDate != nil:
			return true
		case b.DueDate != nil:
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	days := make(map[string]*DaySchedule)
	dayFor := func(d time.Time) *DaySchedule {
		key := d.Format("2006-01-02")
		ds, ok := days[key]
		if !ok {
			ds = &DaySchedule{Date: d, AvailableMinutes: dailyCapacity, PrinterCount: printerCount}
			days[key] = ds
		}
		return ds
	}

	cursor := startOfDay(start)
	if isWeekend(cursor) {
		cursor = nextWorkDay(cursor)
	}
	remainingToday := dailyCapacity

	var jobs []ScheduledJob
	for _, item := range queue {
		remaining := item.PrintTimeNeeded()
		if remaining <= 0 {
			continue
		}
		if remainingToday <= 0 {
			cursor = nextWorkDay(cursor)
			remainingToday = dailyCapacity
		}
		jobStart := cursor

		for remaining > 0 {
			spend := remaining
			if spend > remainingToday {
				spend = remainingToday
			}
			remaining -= spend
			remainingToday -= spend

			ds := dayFor(cursor)
			ds.TotalMinutes += spend
			ds.AvailableMinutes = dailyCapacity - ds.TotalMinutes

			if remaining > 0 {
				cursor = nextWorkDay(cursor)
				remainingToday = dailyCapacity
			}
		}

		job := ScheduledJob{
			WorkItem:       item,
			ScheduledStart: jobStart,
			EstimatedEnd:   cursor,
		}
		if item.DueDate != nil {
			job.IsPastDeadline = calendarDayAfter(cursor, *item.DueDate)
		}
		jobs = append(jobs, job)
		dayFor(jobStart).Jobs = append(dayFor(jobStart).Jobs, job)
	}

	result := ScheduleResult{Jobs: jobs, Days: make([]DaySchedule, 0, len(days))}
	for _, ds := range days {
		result.Days = append(result.Days, *ds)
	}
	sort.Slice(result.Days, func(i, j int) bool {
		return result.Days[i].Date.Before(result.Days[j].Date)
	})
	return result
}

// JobsForDate returns the jobs whose scheduled span covers the given date.
func JobsForDate(jobs []ScheduledJob, date time.Time) []ScheduledJob {
	target := startOfDay(date)
	var out []ScheduledJob
	for _, j := range jobs {
		if !target.Before(startOfDay(j.ScheduledStart)) && !target.After(startOfDay(j.EstimatedEnd)) {
			out = append(out, j)
		}
	}
	return out
}

// FormatPrintTime renders minutes as a compact hours-and-minutes string.
func FormatPrintTime(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	h, m := minutes/60, minutes%60
	if m > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dh", h)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// calendarDayAfter reports whether a falls on a later calendar day than
// b. Due dates arrive as midnight UTC while the cursor carries the
// caller's location, so the instants are never compared directly.
func calendarDayAfter(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func nextWorkDay(t time.Time) time.Time {
	next := startOfDay(t).AddDate(0, 0, 1)
	for isWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
