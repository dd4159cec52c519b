// Package poller runs one polling loop per connected mailbox and drives each
// unread message through the reply pipeline.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/analytics"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
	"github.com/stoik/replai/services/replai-service/internal/composer"
	"github.com/stoik/replai/services/replai-service/internal/metrics"
	"github.com/stoik/replai/services/replai-service/internal/provider"
)

const (
	DefaultInterval  = 60 * time.Second
	DefaultBatchSize = 5

	// upper bound for one message, fetch to mark-read
	messageTimeout = 2 * time.Minute
	// Gmail caps maxResults at 500
	maxListWindow = 500
)

// Registry is the connection registry and user lookup the loops consult.
type Registry interface {
	GetAccount(ctx context.Context, userID uuid.UUID, p models.Provider, address string) (models.ConnectedAccount, error)
	FindAccount(ctx context.Context, userID uuid.UUID, address string) (models.ConnectedAccount, error)
	ListAllAccounts(ctx context.Context) ([]models.ConnectedAccount, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

// Recorder persists pipeline outcomes.
type Recorder interface {
	RecordInbound(ctx context.Context, account models.ConnectedAccount, content models.MessageContent) (models.InboundMessage, error)
	RecordSent(ctx context.Context, rc analytics.ReplyContext, responseTime time.Duration) (models.SentReply, error)
	MarkProcessed(ctx context.Context, inboundID uuid.UUID, message string) error
	MarkSkipped(ctx context.Context, inboundID uuid.UUID, reason string) error
	MarkFailed(ctx context.Context, inboundID uuid.UUID, stage string, cause error) error
}

// Composer drafts replies.
type Composer interface {
	Compose(ctx context.Context, in composer.Input) (composer.Reply, error)
}

// Config tunes the loops.
type Config struct {
	Interval  time.Duration
	BatchSize int64
}

type mailboxLoop struct {
	account models.ConnectedAccount
	cancel  context.CancelFunc
	// held for the duration of a tick so ticks of one mailbox never overlap
	tickMu sync.Mutex
}

// Service owns every mailbox loop and the shared DedupeSet.
type Service struct {
	registry  Registry
	providers provider.Factory
	recorder  Recorder
	composer  Composer
	cfg       Config
	logger    *log.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	loops  map[string]*mailboxLoop
	dedupe *DedupeSet
	wg     sync.WaitGroup
}

// NewService wires the loop manager. Zero config values take the defaults.
func NewService(registry Registry, providers provider.Factory, recorder Recorder, comp Composer, cfg Config, logger *log.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		registry:  registry,
		providers: providers,
		recorder:  recorder,
		composer:  comp,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		loops:     make(map[string]*mailboxLoop),
		dedupe:    NewDedupeSet(),
	}
}

// Start launches a loop for every connected account on file.
func (s *Service) Start(ctx context.Context) error {
	accounts, err := s.registry.ListAllAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load connected accounts: %w", err)
	}
	for _, a := range accounts {
		s.Connect(a)
	}
	s.logger.Info("Poller started", "mailboxes", len(accounts), "interval", s.cfg.Interval)
	return nil
}

// Connect starts polling account. The first tick runs immediately. Calling
// Connect for a mailbox that is already polled does nothing.
func (s *Service) Connect(account models.ConnectedAccount) {
	key := account.Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	if _, exists := s.loops[key]; exists {
		s.logger.Debug("Mailbox already polled", "mailbox", key)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	l := &mailboxLoop{account: account, cancel: cancel}
	s.loops[key] = l
	metrics.ActiveMailboxes.Set(float64(len(s.loops)))

	s.wg.Add(1)
	go s.run(ctx, l)
	s.logger.Info("Started polling", "mailbox", key)
}

// Disconnect stops every loop of userID polling address, whatever the
// provider. It returns the number of loops stopped.
func (s *Service) Disconnect(userID uuid.UUID, address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := 0
	for key, l := range s.loops {
		if l.account.UserID == userID && strings.EqualFold(l.account.EmailAddress, address) {
			l.cancel()
			delete(s.loops, key)
			stopped++
			s.logger.Info("Stopped polling", "mailbox", key)
		}
	}
	metrics.ActiveMailboxes.Set(float64(len(s.loops)))
	return stopped
}

// TriggerSync runs one tick for a mailbox now and returns how many messages
// were answered. A paused mailbox yields ErrConflict.
func (s *Service) TriggerSync(ctx context.Context, userID uuid.UUID, address string) (int, error) {
	account, err := s.registry.FindAccount(ctx, userID, address)
	if err != nil {
		return 0, err
	}
	if account.SyncPaused {
		return 0, fmt.Errorf("%w: sync is paused for %s", apperr.ErrConflict, account.EmailAddress)
	}

	s.mu.Lock()
	l := s.loops[account.Key()]
	s.mu.Unlock()
	if l != nil {
		l.tickMu.Lock()
		defer l.tickMu.Unlock()
	}
	return s.sync(ctx, account)
}

// Active lists the keys of running loops, sorted.
func (s *Service) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.loops))
	for k := range s.loops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stop cancels all loops and waits up to timeout for in-flight ticks.
// Returns true if every loop exited in time.
func (s *Service) Stop(timeout time.Duration) bool {
	s.logger.Info("Stopping poller", "timeout", timeout)

	s.mu.Lock()
	s.cancel()
	s.loops = make(map[string]*mailboxLoop)
	s.mu.Unlock()
	metrics.ActiveMailboxes.Set(0)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All mailbox loops stopped")
		return true
	case <-time.After(timeout):
		s.logger.Warn("Shutdown timeout reached, some ticks may still be in progress", "timeout", timeout)
		return false
	}
}

// run ticks immediately, then re-arms the timer only once the tick returned.
func (s *Service) run(ctx context.Context, l *mailboxLoop) {
	defer s.wg.Done()
	defer s.forget(l)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.tick(ctx, l)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// forget removes l from the loop table unless it was already replaced.
func (s *Service) forget(l *mailboxLoop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := l.account.Key()
	if s.loops[key] == l {
		delete(s.loops, key)
		metrics.ActiveMailboxes.Set(float64(len(s.loops)))
	}
}

func (s *Service) tick(ctx context.Context, l *mailboxLoop) {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	key := l.account.Key()
	account, err := s.registry.GetAccount(ctx, l.account.UserID, l.account.Provider, l.account.EmailAddress)
	if errors.Is(err, apperr.ErrNotConnected) || errors.Is(err, apperr.ErrNotFound) {
		s.logger.Info("Mailbox no longer connected, stopping loop", "mailbox", key)
		l.cancel()
		return
	}
	if err != nil {
		s.logger.Error("Failed to check connection registry", "mailbox", key, "error", err)
		return
	}
	if account.SyncPaused {
		s.logger.Debug("Sync paused, skipping tick", "mailbox", key)
		return
	}

	if _, err := s.sync(ctx, account); err != nil {
		s.logger.Error("Tick failed", "mailbox", key, "error", err)
	}
}

// sync lists unread messages and runs the pipeline on each new one.
func (s *Service) sync(ctx context.Context, account models.ConnectedAccount) (int, error) {
	mp, err := s.providers.ForAccount(ctx, account)
	if err != nil {
		return 0, err
	}
	refs, err := s.unseen(ctx, mp)
	if err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, nil
	}

	user, err := s.registry.GetUser(ctx, account.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to load user %s: %w", account.UserID, err)
	}
	p := &pipeline{
		Service: s,
		account: account,
		user:    user,
		mailbox: mp,
		used:    user.EmailsUsedAt(s.now()),
		logger:  s.logger.With("mailbox", account.EmailAddress),
	}

	replied := 0
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		if s.dedupe.Has(ref.ID) {
			continue
		}
		if s.processOne(ctx, p, ref) {
			replied++
		}
	}
	return replied, nil
}

// unseen returns up to BatchSize unread messages missing from the DedupeSet.
// Blocked and over-quota messages stay unread, so the listing window widens
// past the deduped ones instead of letting them fill every batch.
func (s *Service) unseen(ctx context.Context, mp provider.MailboxProvider) ([]models.MessageRef, error) {
	limit := s.cfg.BatchSize
	for {
		refs, err := mp.ListUnread(ctx, limit)
		if err != nil {
			return nil, err
		}
		fresh := lo.Filter(refs, func(r models.MessageRef, _ int) bool {
			return !s.dedupe.Has(r.ID)
		})
		skipped := int64(len(refs) - len(fresh))

		if int64(len(fresh)) >= s.cfg.BatchSize {
			return fresh[:s.cfg.BatchSize], nil
		}
		if skipped == 0 || int64(len(refs)) < limit || limit >= maxListWindow {
			return fresh, nil
		}
		limit = min(s.cfg.BatchSize+skipped, maxListWindow)
	}
}

// processOne runs a started message to completion. Cancelling ctx stops the
// loop before the next message, never between a send and its bookkeeping.
func (s *Service) processOne(ctx context.Context, p *pipeline, ref models.MessageRef) bool {
	msgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), messageTimeout)
	defer cancel()
	return p.process(msgCtx, ref)
}
