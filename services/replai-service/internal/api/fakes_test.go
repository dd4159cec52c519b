package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

type fakeStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	accounts []models.ConnectedAccount
	inbound  []models.InboundMessage
	sent     []models.SentReply
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[uuid.UUID]models.User{}}
}

func (s *fakeStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return apperr.ErrConflict
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UsagePeriodStart = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

func (s *fakeStore) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, apperr.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, apperr.ErrNotFound
}

func (s *fakeStore) UpdateCustomPrompt(_ context.Context, userID uuid.UUID, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userID]
	u.CustomPrompt = prompt
	s.users[userID] = u
	return nil
}

func (s *fakeStore) UpdateBlockedSenders(_ context.Context, userID uuid.UUID, list []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userID]
	u.BlockedSenders = list
	s.users[userID] = u
	return nil
}

func (s *fakeStore) UpsertAccount(_ context.Context, a *models.ConnectedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.accounts {
		if existing.Key() == a.Key() {
			a.ID = existing.ID
			s.accounts[i] = *a
			return nil
		}
	}
	a.ID = uuid.New()
	s.accounts = append(s.accounts, *a)
	return nil
}

func (s *fakeStore) FindAccount(_ context.Context, userID uuid.UUID, address string) (models.ConnectedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.UserID == userID && strings.EqualFold(a.EmailAddress, address) {
			return a, nil
		}
	}
	return models.ConnectedAccount{}, apperr.ErrNotConnected
}

func (s *fakeStore) ListAccounts(_ context.Context, userID uuid.UUID) ([]models.ConnectedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ConnectedAccount{}
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) CountAccounts(ctx context.Context, userID uuid.UUID) (int, error) {
	list, _ := s.ListAccounts(ctx, userID)
	return len(list), nil
}

func (s *fakeStore) DeleteAccount(_ context.Context, userID uuid.UUID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.accounts[:0]
	removed := 0
	for _, a := range s.accounts {
		if a.UserID == userID && strings.EqualFold(a.EmailAddress, address) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.accounts = kept
	if removed == 0 {
		return apperr.ErrNotConnected
	}
	return nil
}

func (s *fakeStore) SetSyncPaused(_ context.Context, userID uuid.UUID, address string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.accounts {
		if a.UserID == userID && strings.EqualFold(a.EmailAddress, address) {
			s.accounts[i].SyncPaused = paused
			return nil
		}
	}
	return apperr.ErrNotConnected
}

func (s *fakeStore) ListInbound(_ context.Context, userID uuid.UUID, limit int) ([]models.InboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.InboundMessage{}
	for _, m := range s.inbound {
		if m.UserID == userID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) ListSent(_ context.Context, userID uuid.UUID, limit int) ([]models.SentReply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.SentReply{}
	for _, r := range s.sent {
		if r.UserID == userID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakePoller struct {
	mu           sync.Mutex
	connected    []models.ConnectedAccount
	disconnected []string
	syncResult   int
	syncErr      error
}

func (p *fakePoller) Connect(account models.ConnectedAccount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = append(p.connected, account)
}

func (p *fakePoller) Disconnect(_ uuid.UUID, address string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = append(p.disconnected, address)
	return 1
}

func (p *fakePoller) TriggerSync(context.Context, uuid.UUID, string) (int, error) {
	return p.syncResult, p.syncErr
}

func (p *fakePoller) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.connected))
	for _, a := range p.connected {
		keys = append(keys, a.Key())
	}
	return keys
}

type fakeConnector struct {
	address string
	err     error
}

func (f *fakeConnector) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (f *fakeConnector) Exchange(context.Context, string) (string, models.Token, error) {
	return f.address, models.Token{AccessToken: "access", RefreshToken: "refresh"}, f.err
}

type fakeAnalytics struct {
	summary models.AnalyticsSummary
}

func (f *fakeAnalytics) Summary(context.Context, uuid.UUID) (models.AnalyticsSummary, error) {
	return f.summary, nil
}

type fakeCalendar struct {
	events  []models.CalendarEvent
	lastMin time.Time
	err     error
}

func (f *fakeCalendar) List(_ context.Context, _ uuid.UUID, timeMin, _ time.Time) ([]models.CalendarEvent, error) {
	f.lastMin = timeMin
	return f.events, f.err
}

func (f *fakeCalendar) Create(_ context.Context, _ uuid.UUID, ev models.CalendarEvent) (models.CalendarEvent, error) {
	if f.err != nil {
		return models.CalendarEvent{}, f.err
	}
	ev.ID = "evt-1"
	return ev, nil
}

func (f *fakeCalendar) Update(_ context.Context, _ uuid.UUID, id string, ev models.CalendarEvent) (models.CalendarEvent, error) {
	ev.ID = id
	return ev, f.err
}

func (f *fakeCalendar) Delete(context.Context, uuid.UUID, string) error {
	return f.err
}

type fakeBilling struct {
	payload   []byte
	signature string
	err       error
}

func (f *fakeBilling) Checkout(_ context.Context, _ models.User, plan models.Plan) (string, error) {
	if !plan.Valid() || plan == models.PlanFree {
		return "", apperr.Validation("unknown plan %q", plan)
	}
	return "https://checkout.stripe.com/c/pay/cs_test", nil
}

func (f *fakeBilling) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	f.payload = payload
	f.signature = signature
	return f.err
}
