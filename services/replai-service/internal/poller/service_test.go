package poller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/analytics"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
	"github.com/stoik/replai/services/replai-service/internal/composer"
	"github.com/stoik/replai/services/replai-service/internal/logging"
)

type harness struct {
	svc      *Service
	registry *fakeRegistry
	mailbox  *fakeMailbox
	store    *fakeStore
	gen      *fakeGenerator
	account  models.ConnectedAccount
	user     models.User
}

func newHarness(t *testing.T, interval time.Duration, msgs ...models.MessageContent) *harness {
	t.Helper()
	user := models.User{
		ID:               uuid.New(),
		Email:            "sam@example.com",
		Name:             "Sam",
		Plan:             models.PlanPro,
		UsagePeriodStart: time.Now(),
	}
	account := models.ConnectedAccount{
		ID:           uuid.New(),
		UserID:       user.ID,
		Provider:     models.ProviderGoogle,
		EmailAddress: "sam@example.com",
	}

	h := &harness{
		registry: newFakeRegistry(),
		mailbox:  newFakeMailbox(msgs...),
		store:    newFakeStore(),
		gen:      &fakeGenerator{},
		account:  account,
		user:     user,
	}
	h.registry.put(account)
	h.registry.users[user.ID] = user

	logger := logging.Discard()
	h.svc = NewService(
		h.registry,
		fakeFactory{mailbox: h.mailbox},
		analytics.New(h.store, logger),
		composer.New(h.gen),
		Config{Interval: interval, BatchSize: 5},
		logger,
	)
	t.Cleanup(func() { h.svc.Stop(time.Second) })
	return h
}

func (h *harness) setUser(fn func(u *models.User)) {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()
	u := h.registry.users[h.user.ID]
	fn(&u)
	h.registry.users[h.user.ID] = u
}

func newsletter() models.MessageContent {
	return models.MessageContent{
		ProviderMessageID: "m-newsletter",
		ThreadID:          "t-newsletter",
		MessageIDHeader:   "<digest12@updates.io>",
		Subject:           "Weekly Digest #12",
		PlainBody:         "Here is what happened this week.",
		From:              models.Address{Name: "Updates", Email: "newsletter@updates.io"},
		To:                []models.Address{{Email: "sam@example.com"}},
		ReceivedAt:        time.Now().Add(-time.Minute),
	}
}

func fromBlocked() models.MessageContent {
	return models.MessageContent{
		ProviderMessageID: "m-blocked",
		ThreadID:          "t-blocked",
		Subject:           "Hello",
		PlainBody:         "Buy my stuff",
		From:              models.Address{Email: "spammer@mail.blocked.com"},
	}
}

func TestTriggerSync_RepliesToNewsletter(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter())

	replied, err := h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)
	assert.Equal(t, 1, replied)

	inbound, ok := h.store.byProviderID("m-newsletter")
	require.True(t, ok)
	assert.Equal(t, models.CategoryUpdates, inbound.Category)
	assert.Equal(t, models.SentimentNeutral, inbound.Sentiment)
	assert.True(t, inbound.Processed)
	assert.Equal(t, models.StatusProcessed, inbound.ProcessingStatus)

	sent := h.store.sentReplies()
	require.Len(t, sent, 1)
	assert.True(t, sent[0].IsReply)
	assert.Equal(t, []string{"newsletter@updates.io"}, sent[0].To)
	assert.Equal(t, "Re: Weekly Digest #12", sent[0].Subject)
	assert.Equal(t, "t-newsletter", sent[0].ThreadID)
	assert.Equal(t, "m-newsletter", sent[0].ReplyToMessageID)

	_, sentCount, unread := h.mailbox.counts()
	assert.Equal(t, 1, sentCount)
	assert.Equal(t, 0, unread)
	assert.True(t, h.svc.dedupe.Has("m-newsletter"))
	assert.Equal(t, 1, h.store.used[h.user.ID])
}

func TestTriggerSync_BlockedSender(t *testing.T) {
	h := newHarness(t, time.Hour, fromBlocked())
	h.setUser(func(u *models.User) { u.BlockedSenders = []string{"blocked.com"} })

	replied, err := h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)
	assert.Equal(t, 0, replied)

	inbound, ok := h.store.byProviderID("m-blocked")
	require.True(t, ok)
	assert.False(t, inbound.Processed)
	assert.Equal(t, models.StatusSkipped, inbound.ProcessingStatus)
	assert.Empty(t, h.store.sentReplies())
	assert.Equal(t, 0, h.gen.callCount())

	// blocked messages are remembered and not re-examined
	logLen := len(inbound.ProcessingLog)
	_, err = h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)
	inbound, _ = h.store.byProviderID("m-blocked")
	assert.Len(t, inbound.ProcessingLog, logLen)
}

func TestTriggerSync_BlockedBacklogDoesNotHideOlderMail(t *testing.T) {
	var msgs []models.MessageContent
	for i := 0; i < 5; i++ {
		m := fromBlocked()
		m.ProviderMessageID = fmt.Sprintf("m-blocked-%d", i)
		m.ThreadID = fmt.Sprintf("t-blocked-%d", i)
		msgs = append(msgs, m)
	}
	// listed newest first, so the newsletter sits below a full batch of blocked mail
	msgs = append(msgs, newsletter())
	h := newHarness(t, time.Hour, msgs...)
	h.setUser(func(u *models.User) { u.BlockedSenders = []string{"blocked.com"} })

	replied, err := h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)
	assert.Equal(t, 0, replied)

	replied, err = h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)
	assert.Equal(t, 1, replied)
	require.Len(t, h.store.sentReplies(), 1)
	assert.Equal(t, "t-newsletter", h.store.sentReplies()[0].ThreadID)

	_, _, unread := h.mailbox.counts()
	assert.Equal(t, 5, unread)
}

func TestTriggerSync_DedupedMessagesNeverReachComposer(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter())
	h.mailbox.keepUnread = true

	for i := 0; i < 3; i++ {
		_, err := h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.gen.callCount())
	assert.Len(t, h.store.sentReplies(), 1)
}

func TestTriggerSync_ComposeFailureIsRetried(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter())
	h.gen.errs = []error{errors.New("model overloaded")}

	replied, err := h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)
	assert.Equal(t, 0, replied)
	inbound, _ := h.store.byProviderID("m-newsletter")
	assert.Equal(t, models.StatusFailed, inbound.ProcessingStatus)
	assert.False(t, h.svc.dedupe.Has("m-newsletter"))

	replied, err = h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)
	assert.Equal(t, 1, replied)
	assert.Len(t, h.store.sentReplies(), 1)
}

func TestTriggerSync_SendFailureLeavesMessageUnprocessed(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter())
	h.mailbox.sendErr = apperr.Provider("send reply", errors.New("503"))

	_, err := h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)

	inbound, _ := h.store.byProviderID("m-newsletter")
	assert.False(t, inbound.Processed)
	assert.Empty(t, h.store.sentReplies())
	_, _, unread := h.mailbox.counts()
	assert.Equal(t, 1, unread)
}

func TestTriggerSync_QuotaExceeded(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter())
	h.setUser(func(u *models.User) {
		u.Plan = models.PlanFree
		u.EmailsUsed = models.PlanFree.Limits().Emails
	})

	replied, err := h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)
	assert.Equal(t, 0, replied)
	assert.Equal(t, 0, h.gen.callCount())
	inbound, _ := h.store.byProviderID("m-newsletter")
	assert.Equal(t, models.StatusSkipped, inbound.ProcessingStatus)
}

func TestTriggerSync_AlreadyAnsweredBeforeRestart(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter())
	h.mailbox.keepUnread = true
	_, err := h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)

	// a fresh process shares the store but not the dedupe set
	restarted := NewService(h.registry, fakeFactory{mailbox: h.mailbox}, analytics.New(h.store, logging.Discard()),
		composer.New(h.gen), Config{Interval: time.Hour}, logging.Discard())
	defer restarted.Stop(time.Second)

	replied, err := restarted.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.NoError(t, err)
	assert.Equal(t, 0, replied)
	assert.Equal(t, 1, h.gen.callCount())
	assert.True(t, restarted.dedupe.Has("m-newsletter"))
}

func TestTriggerSync_Paused(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter())
	h.account.SyncPaused = true
	h.registry.put(h.account)

	_, err := h.svc.TriggerSync(context.Background(), h.user.ID, h.account.EmailAddress)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 0, h.gen.callCount())
}

func TestTriggerSync_NotConnected(t *testing.T) {
	h := newHarness(t, time.Hour)
	_, err := h.svc.TriggerSync(context.Background(), h.user.ID, "other@example.com")
	assert.ErrorIs(t, err, apperr.ErrNotConnected)
}

func TestConnect_RunsImmediateTickAndIsIdempotent(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter())

	h.svc.Connect(h.account)
	h.svc.Connect(h.account)
	assert.Equal(t, []string{h.account.Key()}, h.svc.Active())

	assert.Eventually(t, func() bool {
		return len(h.store.sentReplies()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTick_SkipsPausedMailbox(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter())
	h.account.SyncPaused = true
	h.registry.put(h.account)

	l := &mailboxLoop{account: h.account, cancel: func() {}}
	h.svc.tick(context.Background(), l)

	lists, _, _ := h.mailbox.counts()
	assert.Equal(t, 0, lists)
}

func TestDisconnect_StopsFurtherTicks(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)

	h.svc.Connect(h.account)
	assert.Eventually(t, func() bool {
		lists, _, _ := h.mailbox.counts()
		return lists >= 2
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, h.svc.Disconnect(h.user.ID, "SAM@example.com"))
	assert.Empty(t, h.svc.Active())

	// let any in-flight tick drain
	time.Sleep(50 * time.Millisecond)
	before, _, _ := h.mailbox.counts()
	time.Sleep(100 * time.Millisecond)
	after, _, _ := h.mailbox.counts()
	assert.Equal(t, before, after)

	assert.Equal(t, 0, h.svc.Disconnect(h.user.ID, h.account.EmailAddress))
}

func colleague() models.MessageContent {
	return models.MessageContent{
		ProviderMessageID: "m-colleague",
		ThreadID:          "t-colleague",
		Subject:           "Lunch on Friday?",
		PlainBody:         "Are you around on Friday?",
		From:              models.Address{Name: "Kim", Email: "kim@example.org"},
	}
}

// assertReplyRecorded checks the bookkeeping that must follow a successful send.
func assertReplyRecorded(t *testing.T, h *harness, id string) {
	t.Helper()
	require.Len(t, h.store.sentReplies(), 1)
	inbound, ok := h.store.byProviderID(id)
	require.True(t, ok)
	assert.True(t, inbound.Processed)
	assert.Equal(t, models.StatusProcessed, inbound.ProcessingStatus)
	assert.True(t, h.svc.dedupe.Has(id))
}

func TestDisconnect_DuringSendCompletesBookkeeping(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter(), colleague())
	h.mailbox.onSend = func() {
		h.svc.Disconnect(h.user.ID, h.account.EmailAddress)
	}

	h.svc.Connect(h.account)
	require.Eventually(t, func() bool {
		_, _, unread := h.mailbox.counts()
		return unread == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(h.svc.Active()) == 0 }, 2*time.Second, 5*time.Millisecond)

	assertReplyRecorded(t, h, "m-newsletter")

	// the loop ends before the next message
	_, sent, _ := h.mailbox.counts()
	assert.Equal(t, 1, sent)
	_, seen := h.store.byProviderID("m-colleague")
	assert.False(t, seen)
}

func TestStop_DuringSendCompletesBookkeeping(t *testing.T) {
	h := newHarness(t, time.Hour, newsletter())
	stopped := make(chan bool, 1)
	h.mailbox.onSend = func() {
		go func() { stopped <- h.svc.Stop(2 * time.Second) }()
		<-h.svc.ctx.Done()
	}

	h.svc.Connect(h.account)
	select {
	case graceful := <-stopped:
		assert.True(t, graceful)
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}

	_, sent, unread := h.mailbox.counts()
	assert.Equal(t, 1, sent)
	assert.Equal(t, 0, unread)
	assertReplyRecorded(t, h, "m-newsletter")
}

func TestTick_SelfTerminatesWhenRemovedFromRegistry(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)

	h.svc.Connect(h.account)
	require.Eventually(t, func() bool { return h.registry.lookupCount() >= 1 }, 2*time.Second, 5*time.Millisecond)

	h.registry.remove(h.account)
	assert.Eventually(t, func() bool { return len(h.svc.Active()) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStart_ConnectsEveryAccount(t *testing.T) {
	h := newHarness(t, time.Hour)
	other := h.account
	other.ID = uuid.New()
	other.EmailAddress = "work@example.com"
	h.registry.put(other)

	require.NoError(t, h.svc.Start(context.Background()))
	assert.ElementsMatch(t, []string{h.account.Key(), other.Key()}, h.svc.Active())

	assert.True(t, h.svc.Stop(time.Second))
	assert.Empty(t, h.svc.Active())

	h.svc.Connect(h.account)
	assert.Empty(t, h.svc.Active())
}

func TestDedupeSet(t *testing.T) {
	d := NewDedupeSet()
	assert.False(t, d.Has("a"))
	d.Add("a")
	d.Add("a")
	assert.True(t, d.Has("a"))
	assert.Equal(t, 1, d.Len())
}
