package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/stagecall/internal/email"
	"github.com/angelmondragon/stagecall/internal/memberships"
	"github.com/angelmondragon/stagecall/internal/notifications"
	"github.com/angelmondragon/stagecall/pkg/db/models"
	"github.com/angelmondragon/stagecall/pkg/enums"
	"github.com/angelmondragon/stagecall/pkg/logger"
	"github.com/angelmondragon/stagecall/pkg/metrics"
	"github.com/angelmondragon/stagecall/pkg/pagination"
)

const claimScope = "reminder"

type speakerReader interface {
	CurrentSpeaker(ctx context.Context, communityID uuid.UUID) (*memberships.Speaker, error)
	HasLivePost(ctx context.Context, communityID uuid.UUID) (bool, error)
	HasActiveLeague(ctx context.Context, communityID uuid.UUID, now time.Time) (bool, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	FindCommunity(ctx context.Context, communityID uuid.UUID) (*models.Community, error)
	CommunitiesWithSpeaker(ctx context.Context, params pagination.Params) ([]uuid.UUID, string, error)
}

type fanOut interface {
	EnqueueFanOut(ctx context.Context, userIDs []uuid.UUID, kind enums.NotificationKind, jc notifications.JobContext)
}

type mailer interface {
	SendReminder(ctx context.Context, r email.Reminder) error
}

// claimer lets one replica own a reminder send when several processes armed
// timers for the same slot.
type claimer interface {
	Claim(ctx context.Context, scope, id string, ttl time.Duration) (bool, error)
}

// SchedulerParams groups the dependencies of the reminder scheduler.
type SchedulerParams struct {
	Speakers      speakerReader
	Queue         fanOut
	Mailer        mailer
	Claims        claimer
	Clock         Clock
	MaxDelay      time.Duration
	DisableTimers bool
	Metrics       *metrics.ReminderMetrics
	Logger        *logger.Logger
}

type entry struct {
	timer Timer
	state State
	gen   uint64
	label string
	due   time.Time
}

type firedTiers struct {
	slotEnd time.Time
	tiers   map[string]bool
}

// Scheduler keeps at most one reminder timer per community and walks the
// speaker through the 12h, 6h and 1h reminders of their slot.
type Scheduler struct {
	speakers speakerReader
	queue    fanOut
	mailer   mailer
	claims   claimer
	clock    Clock
	maxDelay time.Duration
	disabled bool
	metrics  *metrics.ReminderMetrics
	logg     *logger.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	fired   map[uuid.UUID]*firedTiers
	// locks holds one mutex per community ever adjusted and is never pruned,
	// so it is bounded by the number of communities.
	locks   map[uuid.UUID]*sync.Mutex
	gen     uint64
	stopped bool

	baseCtx context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// NewScheduler builds a reminder scheduler. Call Stop to drop its timers.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	switch {
	case params.Speakers == nil:
		return nil, errors.New("speaker reader is required")
	case params.Queue == nil:
		return nil, errors.New("notification queue is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = realClock{}
	}
	maxDelay := params.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		speakers: params.Speakers,
		queue:    params.Queue,
		mailer:   params.Mailer,
		claims:   params.Claims,
		clock:    clock,
		maxDelay: maxDelay,
		disabled: params.DisableTimers,
		metrics:  params.Metrics,
		logg:     params.Logger,
		entries:  map[uuid.UUID]*entry{},
		fired:    map[uuid.UUID]*firedTiers{},
		locks:    map[uuid.UUID]*sync.Mutex{},
		baseCtx:  baseCtx,
		cancel:   cancel,
	}, nil
}

// AdjustTimer cancels any timer of the community and arms the next one for the
// current speaker slot. Calls for the same community never interleave.
func (s *Scheduler) AdjustTimer(ctx context.Context, communityID uuid.UUID) error {
	lock := s.lockFor(communityID)
	lock.Lock()
	defer lock.Unlock()

	logCtx := s.logg.WithCommunityID(ctx, communityID.String())
	s.cancelTimer(communityID)

	speaker, err := s.speakers.CurrentSpeaker(ctx, communityID)
	if err != nil {
		return fmt.Errorf("load current speaker: %w", err)
	}
	if speaker == nil {
		s.forgetFired(communityID)
		s.logg.Debug(logCtx, "no speaker on mic, reminder idle")
		return nil
	}

	remaining := speaker.EndingAt.Sub(s.clock.Now())
	tier, ok := selectTier(remaining, s.firedFor(communityID, speaker.EndingAt))
	if !ok {
		s.logg.Debug(s.logg.WithField(logCtx, "remaining", remaining.String()), "no reminder tier left for slot")
		return nil
	}

	delay := remaining - tier.Offset
	if delay > s.maxDelay {
		s.arm(logCtx, communityID, StateOverflowArmed, overflowLabel, s.maxDelay, func(ctx context.Context) {
			if err := s.AdjustTimer(ctx, communityID); err != nil {
				s.logg.Error(logCtx, "reminder overflow re-evaluation failed", err)
			}
		})
		return nil
	}

	slotEnd := speaker.EndingAt
	s.arm(logCtx, communityID, StateNearTermArmed, tier.Name, delay, func(ctx context.Context) {
		s.fire(ctx, communityID, slotEnd, tier)
	})
	return nil
}

// Cancel drops any timer armed for the community.
func (s *Scheduler) Cancel(communityID uuid.UUID) {
	lock := s.lockFor(communityID)
	lock.Lock()
	defer lock.Unlock()
	s.cancelTimer(communityID)
}

// State reports the scheduler state of the community.
func (s *Scheduler) State(communityID uuid.UUID) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[communityID]; ok {
		return e.state
	}
	return StateIdle
}

// Due returns when the armed timer of the community fires.
func (s *Scheduler) Due(communityID uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[communityID]
	if !ok {
		return time.Time{}, false
	}
	return e.due, true
}

// ActiveTimers counts communities with a live timer.
func (s *Scheduler) ActiveTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

// RearmAll re-evaluates every community that has a timed speaker.
func (s *Scheduler) RearmAll(ctx context.Context) (int, error) {
	var (
		errs   error
		count  int
		cursor string
	)
	for {
		ids, next, err := s.speakers.CommunitiesWithSpeaker(ctx, pagination.Params{Limit: pagination.MaxLimit, Cursor: cursor})
		if err != nil {
			return count, multierr.Append(errs, fmt.Errorf("list communities with speaker: %w", err))
		}
		for _, id := range ids {
			if err := s.AdjustTimer(ctx, id); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("community %s: %w", id, err))
				continue
			}
			count++
		}
		if next == "" || len(ids) == 0 {
			return count, errs
		}
		cursor = next
	}
}

// Stop cancels every timer and waits for running callbacks. The scheduler
// arms nothing afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.entries, id)
	}
	s.metrics.SetActive(0)
	s.mu.Unlock()

	s.cancel()
	s.running.Wait()
}

func (s *Scheduler) arm(ctx context.Context, communityID uuid.UUID, state State, label string, delay time.Duration, run func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.gen++
	e := &entry{state: state, gen: s.gen, label: label, due: s.clock.Now().Add(delay)}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tier":  label,
		"delay": delay.String(),
	})
	if s.disabled {
		s.logg.Info(logCtx, "timers disabled, reminder not armed")
	} else {
		gen := e.gen
		e.timer = s.clock.AfterFunc(delay, func() { s.onTimer(communityID, gen, run) })
		s.metrics.IncArmed(label)
		s.logg.Debug(logCtx, "reminder timer armed")
	}
	s.entries[communityID] = e
	s.metrics.SetActive(s.activeLocked())
}

// onTimer runs run only when the firing timer is still the armed one.
func (s *Scheduler) onTimer(communityID uuid.UUID, gen uint64, run func(context.Context)) {
	s.mu.Lock()
	e, ok := s.entries[communityID]
	if s.stopped || !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.entries, communityID)
	s.metrics.SetActive(s.activeLocked())
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	run(s.baseCtx)
}

// fire re-validates the slot, sends the reminder and arms the next tier.
func (s *Scheduler) fire(ctx context.Context, communityID uuid.UUID, slotEnd time.Time, tier Tier) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"community_id": communityID.String(),
		"tier":         tier.Name,
	})

	live, err := s.speakers.HasLivePost(ctx, communityID)
	if err != nil {
		s.logg.Error(logCtx, "reminder live post check failed", err)
		return
	}
	if live {
		s.logg.Info(logCtx, "live post exists, reminder dropped")
		return
	}
	speaker, err := s.speakers.CurrentSpeaker(ctx, communityID)
	if err != nil {
		s.logg.Error(logCtx, "reminder speaker check failed", err)
		return
	}
	if speaker == nil {
		s.forgetFired(communityID)
		s.logg.Info(logCtx, "speaker left the mic, reminder dropped")
		return
	}

	s.markFired(communityID, slotEnd, tier)
	if s.claim(logCtx, communityID, slotEnd, tier) {
		s.send(logCtx, communityID, speaker)
	}

	if err := s.AdjustTimer(ctx, communityID); err != nil {
		s.logg.Error(logCtx, "reminder re-arm failed", err)
	}
}

func (s *Scheduler) claim(ctx context.Context, communityID uuid.UUID, slotEnd time.Time, tier Tier) bool {
	if s.claims == nil {
		return true
	}
	id := fmt.Sprintf("%s:%d:%s", communityID, slotEnd.Unix(), tier.Name)
	ok, err := s.claims.Claim(ctx, claimScope, id, tier.Offset+time.Hour)
	if err != nil {
		s.logg.Error(ctx, "reminder claim failed, sending anyway", err)
		return true
	}
	if !ok {
		s.logg.Info(ctx, "reminder already sent by another worker")
	}
	return ok
}

func (s *Scheduler) send(ctx context.Context, communityID uuid.UUID, speaker *memberships.Speaker) {
	now := s.clock.Now()
	when := humanize.RelTime(speaker.EndingAt, now, "ago", "from now")
	jc := notifications.ForCommunity(communityID).WithTime(when)
	s.queue.EnqueueFanOut(ctx, []uuid.UUID{speaker.UserID}, enums.NotificationKindReminderForPostCreation, jc)
	s.metrics.IncSent()

	if s.mailer == nil {
		return
	}
	if err := s.sendEmail(ctx, communityID, speaker, when, now); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, speaker.UserID.String()), "reminder email not sent", err)
	}
}

func (s *Scheduler) sendEmail(ctx context.Context, communityID uuid.UUID, speaker *memberships.Speaker, when string, now time.Time) error {
	user, err := s.speakers.FindUser(ctx, speaker.UserID)
	if err != nil {
		return fmt.Errorf("load speaker: %w", err)
	}
	if user == nil || user.Email == nil || *user.Email == "" || !user.EmailOptIn {
		return nil
	}
	community, err := s.speakers.FindCommunity(ctx, communityID)
	if err != nil {
		return fmt.Errorf("load community: %w", err)
	}
	if community == nil {
		return errors.New("community not found")
	}
	includeTips, err := s.speakers.HasActiveLeague(ctx, communityID, now)
	if err != nil {
		return fmt.Errorf("check active league: %w", err)
	}
	return s.mailer.SendReminder(ctx, email.Reminder{
		UserID:        user.ID.String(),
		To:            *user.Email,
		SpeakerName:   user.DisplayName(),
		CommunityName: community.Name,
		Time:          when,
		IncludeTips:   includeTips,
	})
}

func (s *Scheduler) cancelTimer(communityID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[communityID]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.entries, communityID)
		s.metrics.SetActive(s.activeLocked())
	}
}

func (s *Scheduler) lockFor(communityID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[communityID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[communityID] = lock
	}
	return lock
}

// firedFor returns a copy of the tiers already fired for the slot ending at slotEnd.
func (s *Scheduler) firedFor(communityID uuid.UUID, slotEnd time.Time) map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fired[communityID]
	if !ok || !f.slotEnd.Equal(slotEnd) {
		return nil
	}
	out := make(map[string]bool, len(f.tiers))
	for name := range f.tiers {
		out[name] = true
	}
	return out
}

func (s *Scheduler) markFired(communityID uuid.UUID, slotEnd time.Time, tier Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fired[communityID]
	if !ok || !f.slotEnd.Equal(slotEnd) {
		f = &firedTiers{slotEnd: slotEnd, tiers: map[string]bool{}}
		s.fired[communityID] = f
	}
	f.tiers[tier.Name] = true
}

func (s *Scheduler) forgetFired(communityID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fired, communityID)
}

func (s *Scheduler) activeLocked() int {
	n := 0
	for _, e := range s.entries {
		if e.timer != nil {
			n++
		}
	}
	return n
}
