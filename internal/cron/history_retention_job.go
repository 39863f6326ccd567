package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/stagecall/pkg/logger"
)

const defaultHistoryRetention = 90 * 24 * time.Hour

type HistoryRetentionJobParams struct {
	Logger    *logger.Logger
	History   historyPurger
	Retention time.Duration
}

type historyPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewHistoryRetentionJob(params HistoryRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultHistoryRetention
	}
	return &historyRetentionJob{
		logg:      params.Logger,
		history:   params.History,
		retention: retention,
		now:       time.Now,
	}, nil
}

type historyRetentionJob struct {
	logg      *logger.Logger
	history   historyPurger
	retention time.Duration
	now       func() time.Time
}

func (j *historyRetentionJob) Name() string { return "history-retention" }

func (j *historyRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("history retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": int(j.retention.Hours() / 24),
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "history retention complete")
	return nil
}
