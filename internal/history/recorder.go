package history

import (
	"context"
	"errors"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stagecall/internal/repo"
	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

// Entry is one audited hand-off of a payload to the push provider.
type Entry struct {
	UserID      uuid.UUID
	CommunityID *uuid.UUID
	Kind        enums.NotificationKind
	Payload     string
	Tokens      int
	Failures    int
	Invalid     int
}

type deliveryMirror interface {
	Insert(ctx context.Context, row DeliveryRow) error
}

// Recorder appends delivery history and mirrors it to analytics when configured.
type Recorder struct {
	repo.Base
	mirror deliveryMirror
	logg   *logger.Logger
	now    func() time.Time
}

// NewRecorder builds a recorder. mirror may be nil.
func NewRecorder(db *gorm.DB, mirror deliveryMirror, logg *logger.Logger) (*Recorder, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Recorder{
		Base:   repo.NewBase(db),
		mirror: mirror,
		logg:   logg,
		now:    time.Now,
	}, nil
}

// Append stores the record. Mirror failures are logged and never returned.
func (r *Recorder) Append(ctx context.Context, entry Entry) error {
	if entry.UserID == uuid.Nil {
		return errors.New("user id is required")
	}
	row := models.PushNotificationLog{
		ID:        uuid.New(),
		UserID:    entry.UserID,
		Kind:      entry.Kind,
		Payload:   entry.Payload,
		CreatedAt: r.now().UTC(),
	}
	if err := r.DB(ctx).Create(&row).Error; err != nil {
		return err
	}

	if r.mirror != nil {
		if err := r.mirror.Insert(ctx, toDeliveryRow(row, entry)); err != nil {
			r.logg.Error(r.logg.WithUserID(ctx, entry.UserID.String()), "delivery analytics mirror failed", err)
		}
	}
	return nil
}

// DeleteOlderThan purges history created before cutoff.
func (r *Recorder) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&models.PushNotificationLog{})
	return res.RowsAffected, res.Error
}

func toDeliveryRow(row models.PushNotificationLog, entry Entry) DeliveryRow {
	out := DeliveryRow{
		DeliveryID:   row.ID.String(),
		UserID:       row.UserID.String(),
		Kind:         row.Kind.String(),
		Tokens:       int64(entry.Tokens),
		Failures:     int64(entry.Failures),
		InvalidCount: int64(entry.Invalid),
		DeliveredAt:  row.CreatedAt,
	}
	if entry.CommunityID != nil {
		out.CommunityID = cbigquery.NullString{StringVal: entry.CommunityID.String(), Valid: true}
	}
	if row.Payload != "" {
		out.Payload = cbigquery.NullJSON{JSONVal: row.Payload, Valid: true}
	}
	return out
}
