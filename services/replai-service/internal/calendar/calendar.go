// Package calendar exposes CRUD on the primary Google Calendar of a user's
// connected Google account.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/stoik/replai/internal/models"
	"github.com/stoik/replai/services/replai-service/internal/apperr"
)

const (
	primaryCalendar = "primary"
	dateLayout      = "2006-01-02"
	maxEvents       = 250
)

// Accounts looks up a user's connected mailboxes.
type Accounts interface {
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]models.ConnectedAccount, error)
}

// Credentials turns an account into authenticated Google client options.
type Credentials interface {
	ClientOptions(ctx context.Context, account models.ConnectedAccount) []option.ClientOption
}

// Service is the calendar facade used by the API.
type Service struct {
	accounts Accounts
	creds    Credentials
	logger   *log.Logger
}

// NewService creates a calendar Service.
func NewService(accounts Accounts, creds Credentials, logger *log.Logger) *Service {
	return &Service{accounts: accounts, creds: creds, logger: logger}
}

// List returns events of the primary calendar between timeMin and timeMax.
func (s *Service) List(ctx context.Context, userID uuid.UUID, timeMin, timeMax time.Time) ([]models.CalendarEvent, error) {
	svc, err := s.client(ctx, userID)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(primaryCalendar).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxEvents).
		Context(ctx)
	if !timeMin.IsZero() {
		call = call.TimeMin(timeMin.Format(time.RFC3339))
	}
	if !timeMax.IsZero() {
		call = call.TimeMax(timeMax.Format(time.RFC3339))
	}

	resp, err := call.Do()
	if err != nil {
		return nil, apperr.Provider("list calendar events", err)
	}
	events := make([]models.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, fromGoogle(item))
	}
	return events, nil
}

// Create inserts an event.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, ev models.CalendarEvent) (models.CalendarEvent, error) {
	if err := validate(ev); err != nil {
		return models.CalendarEvent{}, err
	}
	svc, err := s.client(ctx, userID)
	if err != nil {
		return models.CalendarEvent{}, err
	}
	created, err := svc.Events.Insert(primaryCalendar, toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return models.CalendarEvent{}, apperr.Provider("create calendar event", err)
	}
	return fromGoogle(created), nil
}

// Update replaces the editable fields of an event.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, id string, ev models.CalendarEvent) (models.CalendarEvent, error) {
	if id == "" {
		return models.CalendarEvent{}, apperr.Validation("event id is required")
	}
	if err := validate(ev); err != nil {
		return models.CalendarEvent{}, err
	}
	svc, err := s.client(ctx, userID)
	if err != nil {
		return models.CalendarEvent{}, err
	}
	updated, err := svc.Events.Patch(primaryCalendar, id, toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return models.CalendarEvent{}, apperr.Provider("update calendar event", err)
	}
	return fromGoogle(updated), nil
}

// Delete removes an event.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, id string) error {
	if id == "" {
		return apperr.Validation("event id is required")
	}
	svc, err := s.client(ctx, userID)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(primaryCalendar, id).Context(ctx).Do(); err != nil {
		return apperr.Provider("delete calendar event", err)
	}
	return nil
}

// client uses the first connected Google account of the user.
func (s *Service) client(ctx context.Context, userID uuid.UUID) (*gcal.Service, error) {
	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Provider != models.ProviderGoogle {
			continue
		}
		svc, err := gcal.NewService(ctx, s.creds.ClientOptions(ctx, a)...)
		if err != nil {
			return nil, apperr.Provider("calendar client", err)
		}
		return svc, nil
	}
	return nil, fmt.Errorf("%w: connect a Google account to use the calendar", apperr.ErrNotConnected)
}

func validate(ev models.CalendarEvent) error {
	if ev.Summary == "" {
		return apperr.Validation("summary is required")
	}
	if ev.Start.IsZero() || ev.End.IsZero() {
		return apperr.Validation("start and end are required")
	}
	if ev.End.Before(ev.Start) {
		return apperr.Validation("end must not be before start")
	}
	return nil
}

func toGoogle(ev models.CalendarEvent) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if ev.AllDay {
		out.Start = &gcal.EventDateTime{Date: ev.Start.Format(dateLayout)}
		out.End = &gcal.EventDateTime{Date: ev.End.Format(dateLayout)}
	} else {
		out.Start = &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)}
		out.End = &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339)}
	}
	for _, email := range ev.Attendees {
		out.Attendees = append(out.Attendees, &gcal.EventAttendee{Email: email})
	}
	return out
}

func fromGoogle(item *gcal.Event) models.CalendarEvent {
	ev := models.CalendarEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		HTMLLink:    item.HtmlLink,
	}
	ev.Start, ev.AllDay = parseEventTime(item.Start)
	ev.End, _ = parseEventTime(item.End)
	for _, a := range item.Attendees {
		ev.Attendees = append(ev.Attendees, a.Email)
	}
	return ev
}

func parseEventTime(t *gcal.EventDateTime) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err == nil {
			return parsed, false
		}
	}
	if t.Date != "" {
		parsed, err := time.Parse(dateLayout, t.Date)
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
