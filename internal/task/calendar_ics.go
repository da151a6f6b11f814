package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/internal/model"
)

const icsDateLayout = "20060102"

var errNoDueDate = errors.New("task due date required for calendar export")

// BuildTaskCalendarICS builds a simple iCalendar event for a task.
// A due date is required so the exported event has a concrete start date.
func BuildTaskCalendarICS(t model.Task, now time.Time) (string, error) {
	dueRaw := strings.TrimSpace(t.DueDate)
	if dueRaw == "" {
		return "", errNoDueDate
	}

	day, ok := dueDay(dueRaw, time.Local)
	if !ok {
		return "", fmt.Errorf("task due date must be YYYY-MM-DD")
	}
	due, _ := time.ParseInLocation("2006-01-02", day, time.Local)
	end := due.AddDate(0, 0, 1)

	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = "Taskboard Task"
	}
	desc := strings.TrimSpace(t.Description)

	uid := fmt.Sprintf("%s@taskboard", strings.TrimSpace(string(t.ID)))
	if strings.TrimSpace(string(t.ID)) == "" {
		uid = fmt.Sprintf("task-export-%d@taskboard", now.UnixNano())
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Taskboard//Task Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + escapeICSText(uid),
		"DTSTAMP:" + now.UTC().Format("20060102T150405Z"),
		"SUMMARY:" + escapeICSText(title),
		"DTSTART;VALUE=DATE:" + due.Format(icsDateLayout),
		"DTEND;VALUE=DATE:" + end.Format(icsDateLayout),
	}
	if desc != "" {
		lines = append(lines, "DESCRIPTION:"+escapeICSText(desc))
	}
	if p := priorityToICS(t.Priority); p > 0 {
		lines = append(lines, fmt.Sprintf("PRIORITY:%d", p))
	}
	if len(t.Tags) > 0 {
		cats := make([]string, 0, len(t.Tags))
		for _, tag := range t.Tags {
			cats = append(cats, escapeICSText(tag))
		}
		lines = append(lines, "CATEGORIES:"+strings.Join(cats, ","))
	}
	lines = append(lines, "END:VEVENT", "END:VCALENDAR", "")

	return strings.Join(lines, "\r\n"), nil
}

// priorityToICS maps to RFC 5545 PRIORITY (1 highest, 9 lowest).
func priorityToICS(p model.Priority) int {
	switch model.ParsePriority(string(p)) {
	case model.PriorityHigh:
		return 1
	case model.PriorityMedium:
		return 5
	case model.PriorityLow:
		return 9
	default:
		return 0
	}
}

func escapeICSText(s string) string {
	repl := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
		"\r", "\\n",
	)
	return repl.Replace(s)
}
