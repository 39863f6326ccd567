package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/stagecall/internal/history"
	"github.com/angelmondragon/stagecall/internal/memberships"
	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
	pkgerrors "github.com/angelmondragon/stagecall/pkg/errors"
	"github.com/angelmondragon/stagecall/pkg/logger"
	"github.com/angelmondragon/stagecall/pkg/metrics"
	"github.com/angelmondragon/stagecall/pkg/push"
)

const (
	defaultConcurrency = 8
	defaultSendTimeout = 10 * time.Second
)

var errSendFailed = errors.New("push send failed")

type preferenceFinder interface {
	Find(ctx context.Context, userID, communityID uuid.UUID) (*models.NotificationPreference, error)
}

type userFinder interface {
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type deviceStore interface {
	ActiveTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
	NullTokens(ctx context.Context, tokens []string) (int64, error)
}

type historyAppender interface {
	Append(ctx context.Context, entry history.Entry) error
}

// EngineParams groups the dependencies of the delivery engine.
type EngineParams struct {
	Preferences preferenceFinder
	Users       userFinder
	Devices     deviceStore
	History     historyAppender
	Resolver    EntityResolver
	Provider    push.Provider
	Metrics     *metrics.DeliveryMetrics
	Logger      *logger.Logger
	Concurrency int
	SendTimeout time.Duration
}

// Engine runs the single-user delivery pipeline for queued notification jobs.
type Engine struct {
	prefs       preferenceFinder
	users       userFinder
	devices     deviceStore
	history     historyAppender
	resolver    EntityResolver
	provider    push.Provider
	metrics     *metrics.DeliveryMetrics
	logg        *logger.Logger
	concurrency int
	sendTimeout time.Duration
}

// Summary counts per-user outcomes of one DeliverToUsers call.
type Summary struct {
	Sent    int
	Denied  int
	Skipped int
	Failed  int
}

func (s Summary) Total() int {
	return s.Sent + s.Denied + s.Skipped + s.Failed
}

// NewEngine validates params and returns an engine.
func NewEngine(params EngineParams) (*Engine, error) {
	switch {
	case params.Preferences == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "preferences finder required")
	case params.Users == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user finder required")
	case params.Devices == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "device store required")
	case params.History == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "history recorder required")
	case params.Resolver == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "entity resolver required")
	case params.Provider == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "push provider required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	sendTimeout := params.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Engine{
		prefs:       params.Preferences,
		users:       params.Users,
		devices:     params.Devices,
		history:     params.History,
		resolver:    params.Resolver,
		provider:    params.Provider,
		metrics:     params.Metrics,
		logg:        params.Logger,
		concurrency: concurrency,
		sendTimeout: sendTimeout,
	}, nil
}

// DeliverToUsers runs the pipeline for every user independently. A failure or
// panic for one user never stops the others. Entities referenced by jc are
// resolved at most once per call, and only after some user passed the gate.
func (e *Engine) DeliverToUsers(ctx context.Context, userIDs []uuid.UUID, kind enums.NotificationKind, jc JobContext) Summary {
	resolve := e.resolveOnce(ctx, kind, jc)

	var (
		mu      sync.Mutex
		summary Summary
	)
	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			err := e.run(ctx, userID, kind, jc, resolve)
			mu.Lock()
			summary.add(err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return summary
}

// DeliverToUser runs the pipeline for a single user. Soft outcomes are
// returned as ErrDeniedByPreference, ErrUnsupportedKind, ErrMissingContext or
// ErrNoDevices.
func (e *Engine) DeliverToUser(ctx context.Context, userID uuid.UUID, kind enums.NotificationKind, jc JobContext) error {
	return e.run(ctx, userID, kind, jc, e.resolveOnce(ctx, kind, jc))
}

func (e *Engine) resolveOnce(ctx context.Context, kind enums.NotificationKind, jc JobContext) func() (BuildInput, error) {
	return sync.OnceValues(func() (BuildInput, error) {
		return e.resolver.Resolve(ctx, kind, jc)
	})
}

func (e *Engine) run(ctx context.Context, userID uuid.UUID, kind enums.NotificationKind, jc JobContext, resolve func() (BuildInput, error)) (err error) {
	logCtx := e.logCtx(ctx, userID, kind, jc)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic delivering notification: %v", r)
		}
		e.report(logCtx, kind, err)
	}()
	return e.deliver(ctx, userID, kind, jc, resolve)
}

func (e *Engine) deliver(ctx context.Context, userID uuid.UUID, kind enums.NotificationKind, jc JobContext, resolve func() (BuildInput, error)) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var (
		pref *models.NotificationPreference
		user *models.User
		err  error
	)
	if needsCommunityPreference(kind) && jc.CommunityID != nil {
		if pref, err = e.prefs.Find(ctx, userID, *jc.CommunityID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification preferences")
		}
	}
	if needsProfile(kind) {
		if user, err = e.users.FindUser(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient profile")
		}
	}
	if !Allowed(kind, pref, user) {
		return ErrDeniedByPreference
	}
	if !Supported(kind) {
		return ErrUnsupportedKind
	}

	in, err := resolve()
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingContext):
			return err
		case errors.Is(err, memberships.ErrNoPreviousSpeaker):
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "attribute speaker selection")
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve notification context")
		}
	}
	msg, err := Build(kind, in)
	if err != nil {
		return err
	}

	tokens, err := e.devices.ActiveTokens(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device tokens")
	}
	if len(tokens) == 0 {
		return ErrNoDevices
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode notification payload")
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	started := time.Now()
	results, sendErr := e.provider.SendMulticast(sendCtx, tokens, msg)
	cancel()
	e.metrics.ObserveSend(time.Since(started))

	// On a transport failure results cover at most the chunks the provider
	// accepted, in request order. Tokens past them count as failed.
	delivered := tokens
	if sendErr != nil {
		if len(results) > len(tokens) {
			results = nil
		}
		delivered = tokens[:len(results)]
	}

	logCtx := e.logCtx(ctx, userID, kind, jc)
	invalid, err := push.InvalidTokens(delivered, results)
	if err != nil {
		e.logg.Error(logCtx, "provider results misaligned, token pruning skipped", err)
		invalid = nil
	}
	if len(invalid) > 0 {
		nulled, err := e.devices.NullTokens(ctx, invalid)
		if err != nil {
			e.logg.Error(logCtx, "failed to null invalid device tokens", err)
		} else {
			e.metrics.AddInvalidTokens(int(nulled))
		}
	}

	entry := history.Entry{
		UserID:      userID,
		CommunityID: jc.CommunityID,
		Kind:        kind,
		Payload:     string(payload),
		Tokens:      len(tokens),
		Failures:    push.CountFailures(results) + len(tokens) - len(delivered),
		Invalid:     len(invalid),
	}
	if err := e.history.Append(ctx, entry); err != nil {
		e.logg.Error(logCtx, "delivery history not recorded", err)
	}
	if sendErr != nil {
		return fmt.Errorf("%w: %w", errSendFailed, sendErr)
	}
	return nil
}

func (e *Engine) report(ctx context.Context, kind enums.NotificationKind, err error) {
	outcome := outcomeOf(err)
	e.metrics.IncDelivery(kind.String(), outcome)
	switch outcome {
	case metrics.OutcomeSent:
		e.logg.Debug(ctx, "push notification sent")
	case metrics.OutcomeDenied:
		e.logg.Info(ctx, "push notification denied by preferences")
	case metrics.OutcomeNoDevices:
		e.logg.Info(ctx, "push notification skipped, no active devices")
	case metrics.OutcomeUnsupported, metrics.OutcomeMissingContext:
		e.logg.Warn(e.logg.WithField(ctx, "reason", err.Error()), "push notification skipped")
	default:
		e.logg.Error(ctx, "push notification failed", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSent
	case errors.Is(err, ErrDeniedByPreference):
		return metrics.OutcomeDenied
	case errors.Is(err, ErrUnsupportedKind):
		return metrics.OutcomeUnsupported
	case errors.Is(err, ErrMissingContext):
		return metrics.OutcomeMissingContext
	case errors.Is(err, ErrNoDevices):
		return metrics.OutcomeNoDevices
	case errors.Is(err, errSendFailed):
		return metrics.OutcomeSendFailed
	default:
		return metrics.OutcomeFailed
	}
}

func (s *Summary) add(err error) {
	switch outcomeOf(err) {
	case metrics.OutcomeSent:
		s.Sent++
	case metrics.OutcomeDenied:
		s.Denied++
	case metrics.OutcomeUnsupported, metrics.OutcomeMissingContext, metrics.OutcomeNoDevices:
		s.Skipped++
	default:
		s.Failed++
	}
}

func (e *Engine) logCtx(ctx context.Context, userID uuid.UUID, kind enums.NotificationKind, jc JobContext) context.Context {
	fields := map[string]any{
		"user_id": userID.String(),
		"kind":    kind.String(),
	}
	if jc.CommunityID != nil {
		fields["community_id"] = jc.CommunityID.String()
	}
	return e.logg.WithFields(ctx, fields)
}
