package task

import (
	"time"

	"taskboard/internal/model"
)

// Stats is the board summary shown above the card list.
type Stats struct {
	Total      int                    `json:"total"`
	Completed  int                    `json:"completed"`
	Pending    int                    `json:"pending"`
	InProgress int                    `json:"inProgress"`
	Overdue    int                    `json:"overdue"`
	ByPriority map[model.Priority]int `json:"byPriority"`
	ByTag      map[string]int         `json:"byTag"`
}

// Summarize counts tasks by status, priority and tag. A task is overdue when
// it is not completed and its due date is before today in now's location.
func Summarize(tasks []model.Task, now time.Time) Stats {
	stats := Stats{
		Total:      len(tasks),
		ByPriority: make(map[model.Priority]int),
		ByTag:      make(map[string]int),
	}
	today := now.Format("2006-01-02")

	for _, t := range tasks {
		status := model.ParseStatus(string(t.Status))
		switch status {
		case model.StatusCompleted:
			stats.Completed++
		case model.StatusInProgress:
			stats.InProgress++
		default:
			stats.Pending++
		}

		p := model.ParsePriority(string(t.Priority))
		if !p.Valid() {
			p = model.PriorityMedium
		}
		stats.ByPriority[p]++

		for _, tag := range t.Tags {
			stats.ByTag[tag]++
		}

		if status != model.StatusCompleted {
			if due, ok := dueDay(t.DueDate, now.Location()); ok && due < today {
				stats.Overdue++
			}
		}
	}
	return stats
}

// dueDay returns the YYYY-MM-DD form of a due date.
func dueDay(s string, loc *time.Location) (string, bool) {
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return d.Format("2006-01-02"), true
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano} {
		if d, err := time.Parse(layout, s); err == nil {
			return d.In(loc).Format("2006-01-02"), true
		}
	}
	return "", false
}
