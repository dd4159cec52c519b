// Package mock backs a local stand-in for the Gmail and chat completion APIs.
package mock

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gm "google.golang.org/api/gmail/v1"
)

var (
	firstNames = []string{"John", "Jane", "Bob", "Alice", "Charlie", "Diana", "Eve", "Frank"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis"}
	domains    = []string{"example.com", "company.com", "business.org", "enterprise.net"}
	senders    = []string{"newsletter@company.com", "notifications@linkedin.com", "deals@shop.example.com"}
	subjects   = []string{
		"Meeting tomorrow",
		"Project update",
		"Budget review",
		"Team lunch",
		"Quarterly report",
		"Client feedback",
		"Urgent: Action required",
		"Follow up",
	}
)

const unreadLabel = "UNREAD"

type message struct {
	id         string
	threadID   string
	from       string
	to         string
	subject    string
	body       string
	receivedAt time.Time
	labels     map[string]bool
}

// Mailbox is an in-memory Gmail mailbox.
type Mailbox struct {
	address string

	mu       sync.RWMutex
	messages map[string]*message
	sent     []string
	counter  int
}

// NewMailbox returns an empty mailbox owned by address.
func NewMailbox(address string) *Mailbox {
	return &Mailbox{address: address, messages: make(map[string]*message)}
}

// Address is the mailbox owner.
func (m *Mailbox) Address() string {
	return m.address
}

// Deliver adds an unread message and returns its id.
func (m *Mailbox) Deliver(from, subject, body string, receivedAt time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counter++
	id := fmt.Sprintf("%016x", m.counter)
	m.messages[id] = &message{
		id:         id,
		threadID:   "t" + id,
		from:       from,
		to:         m.address,
		subject:    subject,
		body:       body,
		receivedAt: receivedAt,
		labels:     map[string]bool{unreadLabel: true, "INBOX": true},
	}
	return id
}

// Generate delivers n random messages received around now.
func (m *Mailbox) Generate(n int, now time.Time) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		from, subject, body := randomMessage(m.address)
		secondsAgo := time.Duration(rand.Intn(30)) * time.Second
		ids = append(ids, m.Deliver(from, subject, body, now.Add(-secondsAgo)))
	}
	return ids
}

// GeneratePeriodically delivers 0-2 messages every interval until stop closes.
func (m *Mailbox) GeneratePeriodically(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			m.Generate(rand.Intn(3), now)
		}
	}
}

// ListUnread returns up to max unread message refs, newest first.
func (m *Mailbox) ListUnread(max int) []*gm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	unread := make([]*message, 0)
	for _, msg := range m.messages {
		if msg.labels[unreadLabel] {
			unread = append(unread, msg)
		}
	}
	sort.Slice(unread, func(i, j int) bool {
		return unread[i].receivedAt.After(unread[j].receivedAt)
	})
	if max > 0 && len(unread) > max {
		unread = unread[:max]
	}

	refs := make([]*gm.Message, 0, len(unread))
	for _, msg := range unread {
		refs = append(refs, &gm.Message{Id: msg.id, ThreadId: msg.threadID})
	}
	return refs
}

// Get returns the full Gmail representation of id.
func (m *Mailbox) Get(id string) (*gm.Message, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, false
	}
	labels := make([]string, 0, len(msg.labels))
	for l := range msg.labels {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	return &gm.Message{
		Id:           msg.id,
		ThreadId:     msg.threadID,
		LabelIds:     labels,
		Snippet:      snippet(msg.body),
		InternalDate: msg.receivedAt.UnixMilli(),
		Payload: &gm.MessagePart{
			MimeType: "text/plain",
			Headers: []*gm.MessagePartHeader{
				{Name: "From", Value: msg.from},
				{Name: "To", Value: msg.to},
				{Name: "Subject", Value: msg.subject},
				{Name: "Date", Value: msg.receivedAt.Format(time.RFC1123Z)},
				{Name: "Message-ID", Value: fmt.Sprintf("<%s@mock.local>", msg.id)},
			},
			Body: &gm.MessagePartBody{
				Data: base64.URLEncoding.EncodeToString([]byte(msg.body)),
				Size: int64(len(msg.body)),
			},
		},
	}, true
}

// Modify applies label changes to id.
func (m *Mailbox) Modify(id string, add, remove []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok {
		return false
	}
	for _, l := range add {
		msg.labels[l] = true
	}
	for _, l := range remove {
		delete(msg.labels, l)
	}
	return true
}

// Send records a raw base64url RFC 2822 message and returns its id.
func (m *Mailbox) Send(raw string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return "", fmt.Errorf("raw is not base64url: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, string(decoded))
	m.counter++
	return fmt.Sprintf("s%015x", m.counter), nil
}

// Sent returns the decoded messages sent so far.
func (m *Mailbox) Sent() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

func randomMessage(to string) (from, subject, body string) {
	subject = subjects[rand.Intn(len(subjects))]
	if rand.Intn(4) == 0 {
		from = senders[rand.Intn(len(senders))]
		body = fmt.Sprintf("Your weekly digest for %s.\n\nClick here to unsubscribe.", to)
		return from, subject, body
	}

	first := firstNames[rand.Intn(len(firstNames))]
	last := lastNames[rand.Intn(len(lastNames))]
	from = fmt.Sprintf("%s %s <%s.%s@%s>", first, last, strings.ToLower(first), strings.ToLower(last), domains[rand.Intn(len(domains))])
	body = fmt.Sprintf(
		"Hi,\n\n"+
			"Quick note about: %s\n"+
			"Could you get back to me when you have a moment?\n\n"+
			"Reference: %s\n\n"+
			"Best regards,\n%s",
		subject,
		uuid.NewString(),
		first,
	)
	return from, subject, body
}

func snippet(body string) string {
	s := strings.Join(strings.Fields(body), " ")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
