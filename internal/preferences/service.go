package preferences

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/stagecall/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stagecall/pkg/errors"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

// Service reads and updates per-community notification preferences.
type Service interface {
	Get(ctx context.Context, userID, communityID uuid.UUID) (*models.NotificationPreference, error)
	Update(ctx context.Context, userID, communityID uuid.UUID, input Update) (*models.NotificationPreference, error)
	EnsureExists(ctx context.Context, userID, communityID uuid.UUID)
}

type repository interface {
	Find(ctx context.Context, userID, communityID uuid.UUID) (*models.NotificationPreference, error)
	CreateIfAbsent(ctx context.Context, pref *models.NotificationPreference) (bool, error)
	Save(ctx context.Context, pref *models.NotificationPreference) error
}

type viewsNotifier interface {
	PostViewsUpdated(ctx context.Context, communityID uuid.UUID) error
}

// Update carries the toggles to change. Nil fields are left untouched.
type Update struct {
	TaggedInPost           *bool `json:"taggedInPost,omitempty"`
	TaggedInComment        *bool `json:"taggedInComment,omitempty"`
	PostCreated            *bool `json:"postCreated,omitempty"`
	SelectedAsSpeaker      *bool `json:"selectedAsSpeaker,omitempty"`
	SelectedAsNextSpeaker  *bool `json:"selectedAsNextSpeaker,omitempty"`
	AllComments            *bool `json:"allComments,omitempty"`
	ShowInViewedBy         *bool `json:"showInViewedBy,omitempty"`
	ReactionNotification   *bool `json:"reactionNotification,omitempty"`
	CommunityAnnouncements *bool `json:"communityAnnouncements,omitempty"`
}

// ServiceParams groups the dependencies required by the preferences service.
type ServiceParams struct {
	Repo     repository
	Realtime viewsNotifier
	Logger   *logger.Logger
}

type service struct {
	repo     repository
	realtime viewsNotifier
	logg     *logger.Logger
	creates  singleflight.Group
}

// NewService wires preferences dependencies. Realtime is optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "preferences repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:     params.Repo,
		realtime: params.Realtime,
		logg:     params.Logger,
	}, nil
}

// Get returns the member's record, creating the default one exactly once when
// it is missing. Concurrent readers in this process share one insert and the
// unique (user_id, community_id) index settles races across processes.
func (s *service) Get(ctx context.Context, userID, communityID uuid.UUID) (*models.NotificationPreference, error) {
	if err := validateIDs(userID, communityID); err != nil {
		return nil, err
	}

	pref, err := s.repo.Find(ctx, userID, communityID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification preferences")
	}
	if pref != nil {
		return pref, nil
	}

	key := userID.String() + ":" + communityID.String()
	v, err, _ := s.creates.Do(key, func() (any, error) {
		def := Default(userID, communityID)
		created, err := s.repo.CreateIfAbsent(ctx, &def)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification preferences")
		}
		if created {
			s.logg.Info(s.logCtx(ctx, userID, communityID), "default notification preferences created")
		}
		stored, err := s.repo.Find(ctx, userID, communityID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload notification preferences")
		}
		if stored == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "notification preferences missing after create")
		}
		return stored, nil
	})
	if err != nil {
		return nil, err
	}
	stored := *(v.(*models.NotificationPreference))
	return &stored, nil
}

func (s *service) Update(ctx context.Context, userID, communityID uuid.UUID, input Update) (*models.NotificationPreference, error) {
	pref, err := s.Get(ctx, userID, communityID)
	if err != nil {
		return nil, err
	}

	previousShowInViewedBy := pref.ShowInViewedBy
	applyUpdate(pref, input)

	if err := s.repo.Save(ctx, pref); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save notification preferences")
	}

	if input.ShowInViewedBy != nil && *input.ShowInViewedBy != previousShowInViewedBy && s.realtime != nil {
		if err := s.realtime.PostViewsUpdated(ctx, communityID); err != nil {
			s.logg.Error(s.logCtx(ctx, userID, communityID), "post views update not published", err)
		}
	}
	return pref, nil
}

// EnsureExists creates the default record when missing. Failures are logged only.
func (s *service) EnsureExists(ctx context.Context, userID, communityID uuid.UUID) {
	if _, err := s.Get(ctx, userID, communityID); err != nil {
		s.logg.Error(s.logCtx(ctx, userID, communityID), "ensure notification preferences failed", err)
	}
}

func (s *service) logCtx(ctx context.Context, userID, communityID uuid.UUID) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"user_id":      userID.String(),
		"community_id": communityID.String(),
	})
}

func applyUpdate(pref *models.NotificationPreference, input Update) {
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&pref.TaggedInPost, input.TaggedInPost)
	set(&pref.TaggedInComment, input.TaggedInComment)
	set(&pref.PostCreated, input.PostCreated)
	set(&pref.SelectedAsSpeaker, input.SelectedAsSpeaker)
	set(&pref.SelectedAsNextSpeaker, input.SelectedAsNextSpeaker)
	set(&pref.AllComments, input.AllComments)
	set(&pref.ShowInViewedBy, input.ShowInViewedBy)
	set(&pref.ReactionNotification, input.ReactionNotification)
	set(&pref.CommunityAnnouncements, input.CommunityAnnouncements)
}

func validateIDs(userID, communityID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if communityID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "community id required")
	}
	return nil
}
