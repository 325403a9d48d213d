package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/mailer"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

const NotificationTaskReminder = "task_reminder"

// Reminders notifies assignees of tasks whose reminder date has passed.
type Reminders struct {
	store  store.Store
	mailer mailer.Mailer
	logger *zap.Logger
	now    func() time.Time
}

func NewReminders(s store.Store, m mailer.Mailer, logger *zap.Logger) *Reminders {
	return &Reminders{store: s, mailer: m, logger: logger.Named("reminders"), now: time.Now}
}

// Run calls RunOnce every interval until ctx ends.
func (r *Reminders) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("reminder pass failed", zap.Error(err))
			} else if n > 0 {
				r.logger.Info("reminders sent", zap.Int("count", n))
			}
		}
	}
}

// RunOnce handles every due task and returns how many were marked sent.
func (r *Reminders) RunOnce(ctx context.Context) (int, error) {
	tasks, err := r.store.List(ctx, models.EntityTask, "reminder_date")
	if err != nil {
		return 0, err
	}
	now := r.now()
	sent := 0
	for _, task := range tasks {
		if !due(task, now) {
			continue
		}
		if err := r.remind(ctx, task); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func due(task store.Record, now time.Time) bool {
	if done, _ := task["reminder_sent"].(bool); done {
		return false
	}
	switch task["status"] {
	case "completed", "cancelled":
		return false
	}
	at, err := parseTime(task["reminder_date"])
	if err != nil {
		return false
	}
	return !at.After(now)
}

func (r *Reminders) remind(ctx context.Context, task store.Record) error {
	id, _ := task["id"].(string)
	title, _ := task["title"].(string)
	email, err := r.assigneeEmail(ctx, task)
	if err != nil {
		return err
	}
	if email != "" {
		wantApp, wantEmail, err := r.preferences(ctx, email)
		if err != nil {
			return err
		}
		if wantApp {
			_, err := r.store.Create(ctx, models.EntityNotification, store.Record{
				"user_email":   email,
				"type":         NotificationTaskReminder,
				"title":        "Task reminder",
				"message":      fmt.Sprintf("Reminder: %s", title),
				"link":         "/tasks/" + id,
				"is_read":      false,
				"created_date": r.now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
		}
		if wantEmail {
			err := r.mailer.Send(ctx, mailer.Message{
				To:      email,
				Subject: "Task reminder: " + title,
				HTML:    fmt.Sprintf("<p>This is a reminder for the task <strong>%s</strong>.</p>", title),
			})
			if err != nil {
				r.logger.Warn("reminder email failed", zap.String("task_id", id), zap.Error(err))
			}
		}
	} else {
		r.logger.Warn("task has no reachable assignee", zap.String("task_id", id))
	}
	_, err = r.store.Update(ctx, models.EntityTask, id, store.Record{
		"reminder_sent": true,
		"updated_date":  r.now().UTC().Format(time.RFC3339),
	})
	return err
}

// assigneeEmail resolves assigned_to, which holds either an email or a member id.
func (r *Reminders) assigneeEmail(ctx context.Context, task store.Record) (string, error) {
	assigned, _ := task["assigned_to"].(string)
	if assigned == "" {
		return "", nil
	}
	if strings.Contains(assigned, "@") {
		return normalizeEmail(assigned), nil
	}
	member, err := r.store.Get(ctx, models.EntityTeamMember, assigned)
	if err != nil || member == nil {
		return "", err
	}
	email, _ := member["email"].(string)
	return normalizeEmail(email), nil
}

// preferences defaults both channels to on when the user has none stored.
func (r *Reminders) preferences(ctx context.Context, email string) (app, mail bool, err error) {
	prefs, err := r.store.Filter(ctx, models.EntityUserPreferences, store.Record{"user_email": email}, "", 1)
	if err != nil {
		return false, false, err
	}
	app, mail = true, true
	if len(prefs) == 0 {
		return app, mail, nil
	}
	if v, ok := prefs[0]["task_due_app"].(bool); ok {
		app = v
	}
	if v, ok := prefs[0]["task_due_email"].(bool); ok {
		mail = v
	}
	return app, mail, nil
}
