package client

import "task-api/api"

// Summary holds the dashboard metrics for a task list. Tasks without an
// estimate count as zero hours.
type Summary struct {
	Total           int
	Completed       int
	Pending         int
	CompletionRate  float64 // percent, 0 for an empty list
	TotalHours      int
	CompletedHours  int
	ByCategory      map[string]int
	HoursByCategory map[string]int
}

func Summarize(tasks []api.TaskDto) Summary {
	s := Summary{
		ByCategory:      map[string]int{},
		HoursByCategory: map[string]int{},
	}
	for _, t := range tasks {
		hours := 0
		if t.EstimateHours != nil {
			hours = *t.EstimateHours
		}
		s.Total++
		s.TotalHours += hours
		if t.IsDone {
			s.Completed++
			s.CompletedHours += hours
		}
		s.ByCategory[t.Category]++
		s.HoursByCategory[t.Category] += hours
	}
	s.Pending = s.Total - s.Completed
	if s.Total > 0 {
		s.CompletionRate = float64(s.Completed) * 100 / float64(s.Total)
	}
	return s
}
