package page

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"taskboard/internal/model"
	"taskboard/internal/task"
)

// BoardPage renders the stats strip and the task list. The collection is
// read from repo on every render.
func BoardPage(repo task.Repo, now func() time.Time) templ.Component {
	if now == nil {
		now = time.Now
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		records, err := repo.List()
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		tasks := model.Tasks(records)
		stats := task.Summarize(tasks, now())

		var b bytes.Buffer
		b.WriteString(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Taskboard</title>
  <link rel="stylesheet" href="/board.css">
</head>
<body>
  <h1>Taskboard</h1>
`)
		writeStats(&b, stats)
		writeTaskList(&b, tasks)
		b.WriteString("</body>\n</html>\n")

		_, err = w.Write(b.Bytes())
		return err
	})
}

func writeStats(b *bytes.Buffer, s task.Stats) {
	b.WriteString(`  <p class="stats">` + "\n")
	fmt.Fprintf(b, "    <span>Total: <b>%d</b></span>\n", s.Total)
	fmt.Fprintf(b, "    <span>Completed: <b>%d</b></span>\n", s.Completed)
	fmt.Fprintf(b, "    <span>In progress: <b>%d</b></span>\n", s.InProgress)
	fmt.Fprintf(b, "    <span>Pending: <b>%d</b></span>\n", s.Pending)
	fmt.Fprintf(b, "    <span>Overdue: <b>%d</b></span>\n", s.Overdue)
	b.WriteString("  </p>\n")
}

func writeTaskList(b *bytes.Buffer, tasks []model.Task) {
	if len(tasks) == 0 {
		b.WriteString("  <p class=\"empty\">No tasks yet.</p>\n")
		return
	}
	b.WriteString("  <ul class=\"tasks\">\n")
	for _, t := range tasks {
		class := "task"
		if model.ParseStatus(string(t.Status)) == model.StatusCompleted {
			class += " completed"
		}
		fmt.Fprintf(b, `    <li class="%s" data-id="%s">`, class, templ.EscapeString(string(t.ID)))
		b.WriteString(templ.EscapeString(t.Title))
		if p := model.ParsePriority(string(t.Priority)); p != "" {
			fmt.Fprintf(b, ` <span class="priority">[%s]</span>`, templ.EscapeString(string(p)))
		}
		if t.DueDate != "" {
			fmt.Fprintf(b, ` <span class="due">due %s</span>`, templ.EscapeString(t.DueDate))
		}
		for _, tag := range t.Tags {
			fmt.Fprintf(b, ` <span class="tag">%s</span>`, templ.EscapeString(tag))
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("  </ul>\n")
}
