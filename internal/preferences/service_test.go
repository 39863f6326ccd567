package preferences

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/stagecall/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stagecall/pkg/errors"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

type memoryRepo struct {
	mu      sync.Mutex
	rows    map[string]models.NotificationPreference
	inserts int
	saves   int
	findErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[string]models.NotificationPreference{}}
}

func pairKey(userID, communityID uuid.UUID) string {
	return userID.String() + ":" + communityID.String()
}

func (m *memoryRepo) Find(ctx context.Context, userID, communityID uuid.UUID) (*models.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	row, ok := m.rows[pairKey(userID, communityID)]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memoryRepo) CreateIfAbsent(ctx context.Context, pref *models.NotificationPreference) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(pref.UserID, pref.CommunityID)
	if _, ok := m.rows[key]; ok {
		return false, nil
	}
	m.rows[key] = *pref
	m.inserts++
	return true, nil
}

func (m *memoryRepo) Save(ctx context.Context, pref *models.NotificationPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[pairKey(pref.UserID, pref.CommunityID)] = *pref
	m.saves++
	return nil
}

type stubNotifier struct {
	calls []uuid.UUID
	err   error
}

func (s *stubNotifier) PostViewsUpdated(ctx context.Context, communityID uuid.UUID) error {
	s.calls = append(s.calls, communityID)
	return s.err
}

func newTestService(t *testing.T, repo repository, notifier viewsNotifier) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Realtime: notifier, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func boolPtr(v bool) *bool { return &v }

func TestGetCreatesDefaultExactlyOnceUnderConcurrency(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, nil)
	userID, communityID := uuid.New(), uuid.New()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pref, err := svc.Get(context.Background(), userID, communityID)
			if err != nil {
				errs <- err
				return
			}
			if !pref.PostCreated || !pref.ReactionNotification {
				errs <- errors.New("expected default toggles to be enabled")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("get failed: %v", err)
	}
	if repo.inserts != 1 {
		t.Fatalf("expected exactly one insert, got %d", repo.inserts)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected one stored record, got %d", len(repo.rows))
	}
}

func TestGetValidatesIDs(t *testing.T) {
	svc := newTestService(t, newMemoryRepo(), nil)
	_, err := svc.Get(context.Background(), uuid.Nil, uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.Get(context.Background(), uuid.New(), uuid.Nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetWrapsRepositoryErrors(t *testing.T) {
	repo := newMemoryRepo()
	repo.findErr = errors.New("db down")
	svc := newTestService(t, repo, nil)
	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &stubNotifier{}
	svc := newTestService(t, repo, notifier)
	userID, communityID := uuid.New(), uuid.New()

	pref, err := svc.Update(context.Background(), userID, communityID, Update{
		PostCreated:       boolPtr(false),
		SelectedAsSpeaker: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if pref.PostCreated || pref.SelectedAsSpeaker {
		t.Fatalf("expected toggles to be disabled: %+v", pref)
	}
	if !pref.TaggedInPost || !pref.AllComments || !pref.ShowInViewedBy {
		t.Fatalf("untouched toggles changed: %+v", pref)
	}
	if repo.saves != 1 {
		t.Fatalf("expected one save, got %d", repo.saves)
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("realtime should not fire without a viewed-by change")
	}
}

func TestUpdateShowInViewedByPublishesOnlyOnChange(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &stubNotifier{}
	svc := newTestService(t, repo, notifier)
	userID, communityID := uuid.New(), uuid.New()

	if _, err := svc.Update(context.Background(), userID, communityID, Update{ShowInViewedBy: boolPtr(true)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(notifier.calls) != 0 {
		t.Fatalf("unchanged value must not publish, got %d calls", len(notifier.calls))
	}

	if _, err := svc.Update(context.Background(), userID, communityID, Update{ShowInViewedBy: boolPtr(false)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != communityID {
		t.Fatalf("expected one publish for %s, got %v", communityID, notifier.calls)
	}
}

func TestUpdateSucceedsWhenRealtimeFails(t *testing.T) {
	notifier := &stubNotifier{err: errors.New("pubsub down")}
	svc := newTestService(t, newMemoryRepo(), notifier)
	pref, err := svc.Update(context.Background(), uuid.New(), uuid.New(), Update{ShowInViewedBy: boolPtr(false)})
	if err != nil {
		t.Fatalf("update should not fail on realtime error: %v", err)
	}
	if pref.ShowInViewedBy {
		t.Fatal("expected showInViewedBy to be saved as false")
	}
}

func TestEnsureExistsSwallowsErrors(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(t, repo, nil)
	userID, communityID := uuid.New(), uuid.New()

	svc.EnsureExists(context.Background(), userID, communityID)
	svc.EnsureExists(context.Background(), userID, communityID)
	if repo.inserts != 1 {
		t.Fatalf("expected one insert, got %d", repo.inserts)
	}

	repo.findErr = errors.New("db down")
	svc.EnsureExists(context.Background(), userID, communityID)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected error without repository")
	}
	if _, err := NewService(ServiceParams{Repo: newMemoryRepo()}); err == nil {
		t.Fatal("expected error without logger")
	}
}

func TestDefaults(t *testing.T) {
	userID, communityID := uuid.New(), uuid.New()
	def := Default(userID, communityID)
	if def.ID == uuid.Nil || def.UserID != userID || def.CommunityID != communityID {
		t.Fatalf("unexpected identity fields: %+v", def)
	}
	for _, toggle := range []Toggle{TaggedInPost, TaggedInComment, PostCreated, AllComments, ReactionNotification, CommunityAnnouncements} {
		if !toggle.Read(def) {
			t.Fatalf("expected %s enabled by default", toggle.Column)
		}
		if !toggle.Allowed(nil) {
			t.Fatalf("missing record must allow %s", toggle.Column)
		}
	}
	def.PostCreated = false
	if PostCreated.Allowed(&def) {
		t.Fatal("stored opt-out must deny")
	}
}
