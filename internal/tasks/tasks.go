// Package tasks decides which tasks are current and how far along they are, and
// creates new tasks from location-based suggestions.
package tasks

import (
	"time"

	"github.com/garnizeh/wildspot/internal/badges"
	"github.com/garnizeh/wildspot/internal/models"
)

// IsCurrent reports whether task is open at now. A task is current when it has
// not expired before today and was created between yesterday and tomorrow (UTC days).
func IsCurrent(task models.Task, now time.Time) bool {
	today := badges.StartOfDay(now)
	if task.ExpiresAt.Before(today) {
		return false
	}
	if task.CreatedAt.After(today.AddDate(0, 0, 1)) {
		return false
	}
	return !task.CreatedAt.Before(today.AddDate(0, 0, -1))
}

// Progress is how far a task has come.
type Progress struct {
	Count     int  `json:"count"`
	Completed bool `json:"completed"`
}

// ProgressOf counts the spottings recorded against task. A weekly task only reports
// completion; a daily task reports its running count as well.
func ProgressOf(task models.Task, spottings []models.Spotting) Progress {
	n := len(spottings)
	if task.Kind == models.TaskWeekly {
		return Progress{Completed: n > 0}
	}
	return Progress{Count: n, Completed: n > 0}
}

// CurrentTask is a current task with its progress.
type CurrentTask struct {
	models.Task
	Progress Progress `json:"progress"`
}
