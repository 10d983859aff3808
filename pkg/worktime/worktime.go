// Package worktime turns assignment timestamps into credited hours.
package worktime

import (
	"math"
	"time"
)

// MinimumHours is credited for any finalized assignment, however short.
const MinimumHours = 1.0

// Hours returns max(1, ceil(end - start in hours)). An end before start credits the minimum.
func Hours(start, end time.Time) float64 {
	diff := end.Sub(start).Hours()
	if diff <= 0 {
		return MinimumHours
	}
	return math.Max(MinimumHours, math.Ceil(diff))
}

// Source names where a window boundary came from.
type Source string

const (
	SourceGPS       Source = "gps"
	SourceOperator  Source = "operator"
	SourceClient    Source = "client"
	SourceDriving   Source = "driving_estimate"
	SourceWallClock Source = "wall_clock"
)

// Inputs are every candidate timestamp known when an assignment is finalized.
type Inputs struct {
	GPSStart        *time.Time
	GPSCompletion   *time.Time
	PlannedStart    time.Time
	ClientCompleted *time.Time
	DrivingMinutes  int
	Now             time.Time
}

// Window is the resolved work interval and the hours it credits.
type Window struct {
	Start            time.Time
	Completion       time.Time
	StartSource      Source
	CompletionSource Source
	Hours            float64
}

// Resolve applies one precedence to both ends of the window:
// GPS, then operator or client supplied dates, then the driving estimate, then now.
func Resolve(in Inputs) Window {
	w := Window{Start: in.PlannedStart, StartSource: SourceOperator}
	if in.GPSStart != nil {
		w.Start = *in.GPSStart
		w.StartSource = SourceGPS
	}

	switch {
	case in.GPSCompletion != nil:
		w.Completion = *in.GPSCompletion
		w.CompletionSource = SourceGPS
	case in.ClientCompleted != nil:
		w.Completion = *in.ClientCompleted
		w.CompletionSource = SourceClient
	case in.DrivingMinutes > 0:
		w.Completion = w.Start.Add(time.Duration(in.DrivingMinutes) * time.Minute)
		w.CompletionSource = SourceDriving
	default:
		w.Completion = in.Now
		w.CompletionSource = SourceWallClock
	}

	w.Hours = Hours(w.Start, w.Completion)
	return w
}
