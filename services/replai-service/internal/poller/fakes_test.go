package poller

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
	"github.com/stoik/replai/services/replai-service/internal/provider"
)

type fakeRegistry struct {
	mu       sync.Mutex
	accounts map[string]models.ConnectedAccount
	users    map[uuid.UUID]models.User
	lookups  int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{accounts: map[string]models.ConnectedAccount{}, users: map[uuid.UUID]models.User{}}
}

func (r *fakeRegistry) put(a models.ConnectedAccount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.Key()] = a
}

func (r *fakeRegistry) remove(a models.ConnectedAccount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, a.Key())
}

func (r *fakeRegistry) GetAccount(_ context.Context, userID uuid.UUID, p models.Provider, address string) (models.ConnectedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	a, ok := r.accounts[models.MailboxKey(p, userID, address)]
	if !ok {
		return models.ConnectedAccount{}, apperr.ErrNotConnected
	}
	return a, nil
}

func (r *fakeRegistry) FindAccount(_ context.Context, userID uuid.UUID, address string) (models.ConnectedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID && strings.EqualFold(a.EmailAddress, address) {
			return a, nil
		}
	}
	return models.ConnectedAccount{}, apperr.ErrNotConnected
}

func (r *fakeRegistry) ListAllAccounts(context.Context) ([]models.ConnectedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ConnectedAccount, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeRegistry) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return models.User{}, apperr.ErrNotFound
	}
	return u, nil
}

func (r *fakeRegistry) lookupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

type sentMessage struct {
	raw      string
	threadID string
}

type fakeMailbox struct {
	mu         sync.Mutex
	messages   map[string]models.MessageContent
	unread     []string
	sent       []sentMessage
	listCalls  int
	keepUnread bool
	sendErr    error
	// runs inside Send, after the message went out
	onSend func()
}

func newFakeMailbox(msgs ...models.MessageContent) *fakeMailbox {
	m := &fakeMailbox{messages: map[string]models.MessageContent{}}
	for _, c := range msgs {
		m.messages[c.ProviderMessageID] = c
		m.unread = append(m.unread, c.ProviderMessageID)
	}
	return m
}

func (m *fakeMailbox) ListUnread(_ context.Context, max int64) ([]models.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	refs := []models.MessageRef{}
	for _, id := range m.unread {
		if int64(len(refs)) >= max {
			break
		}
		refs = append(refs, models.MessageRef{ID: id, ThreadID: m.messages[id].ThreadID})
	}
	return refs, nil
}

func (m *fakeMailbox) GetMessage(_ context.Context, id string) (models.MessageContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.messages[id]
	if !ok {
		return models.MessageContent{}, errors.New("no such message")
	}
	return c, nil
}

func (m *fakeMailbox) Send(ctx context.Context, raw, threadID string) (models.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return models.MessageRef{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return models.MessageRef{}, m.sendErr
	}
	m.sent = append(m.sent, sentMessage{raw: raw, threadID: threadID})
	if m.onSend != nil {
		m.onSend()
	}
	return models.MessageRef{ID: "sent-" + threadID, ThreadID: threadID}, nil
}

func (m *fakeMailbox) MarkRead(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keepUnread {
		return nil
	}
	for i, u := range m.unread {
		if u == id {
			m.unread = append(m.unread[:i], m.unread[i+1:]...)
			break
		}
	}
	return nil
}

func (m *fakeMailbox) counts() (lists, sent, unread int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls, len(m.sent), len(m.unread)
}

type fakeFactory struct {
	mailbox *fakeMailbox
}

func (f fakeFactory) ForAccount(context.Context, models.ConnectedAccount) (provider.MailboxProvider, error) {
	return f.mailbox, nil
}

// fakeStore is an in-memory analytics.Store with upsert semantics on
// (account, provider message id). Like pgx, writes fail on a cancelled context.
type fakeStore struct {
	mu      sync.Mutex
	inbound map[uuid.UUID]*models.InboundMessage
	sent    []models.SentReply
	used    map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{inbound: map[uuid.UUID]*models.InboundMessage{}, used: map[uuid.UUID]int{}}
}

func (s *fakeStore) SaveInbound(ctx context.Context, m *models.InboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.inbound {
		if existing.AccountID == m.AccountID && existing.ProviderMessageID == m.ProviderMessageID {
			m.ID = existing.ID
			m.Processed = existing.Processed
			m.ProcessingStatus = existing.ProcessingStatus
			return nil
		}
	}
	m.ID = uuid.New()
	stored := *m
	s.inbound[m.ID] = &stored
	return nil
}

func (s *fakeStore) UpdateInboundStatus(ctx context.Context, id uuid.UUID, status string, entry models.ProcessingEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.inbound[id]
	if !ok {
		return apperr.ErrNotFound
	}
	m.ProcessingStatus = status
	m.Processed = m.Processed || status == models.StatusProcessed
	m.ProcessingLog = append(m.ProcessingLog, entry)
	return nil
}

func (s *fakeStore) SaveSent(ctx context.Context, r *models.SentReply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.New()
	s.sent = append(s.sent, *r)
	return nil
}

func (s *fakeStore) IncrementEmailsUsed(ctx context.Context, userID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used[userID]++
	return nil
}

func (s *fakeStore) Summary(context.Context, uuid.UUID, int) (models.AnalyticsSummary, error) {
	return models.AnalyticsSummary{}, nil
}

func (s *fakeStore) byProviderID(id string) (models.InboundMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.inbound {
		if m.ProviderMessageID == id {
			return *m, true
		}
	}
	return models.InboundMessage{}, false
}

func (s *fakeStore) sentReplies() []models.SentReply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SentReply(nil), s.sent...)
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (g *fakeGenerator) Generate(context.Context, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "Thanks, noted!\n\nSam", nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
