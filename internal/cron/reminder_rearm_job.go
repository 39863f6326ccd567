package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stagecall/pkg/logger"
)

type rearmer interface {
	RearmAll(ctx context.Context) (int, error)
}

// NewReminderRearmJob re-arms reminder timers for every community with a current speaker.
func NewReminderRearmJob(logg *logger.Logger, reminders rearmer) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if reminders == nil {
		return nil, fmt.Errorf("reminder scheduler required")
	}
	return &reminderRearmJob{logg: logg, reminders: reminders}, nil
}

type reminderRearmJob struct {
	logg      *logger.Logger
	reminders rearmer
}

func (j *reminderRearmJob) Name() string { return "reminder-rearm" }

func (j *reminderRearmJob) Run(ctx context.Context) error {
	armed, err := j.reminders.RearmAll(ctx)
	j.logg.Info(j.logg.WithField(ctx, "communities", armed), "reminder rearm pass finished")
	if err != nil {
		return fmt.Errorf("reminder rearm: %w", err)
	}
	return nil
}
