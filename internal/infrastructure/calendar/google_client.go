package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/domain/providers"
	"github.com/clinicdesk/clinic-scheduling/pkg/config"
)

// GoogleCalendarClient pushes appointment events to the Google Calendar REST
// API. It implements providers.CalendarProvider. All calls are best-effort;
// the caller logs failures and moves on.
type GoogleCalendarClient struct {
	accessToken string
	httpClient  *http.Client
	baseURL     string
}

// NewGoogleCalendarClient creates a calendar client from configuration
func NewGoogleCalendarClient(cfg *config.CalendarConfig) (*GoogleCalendarClient, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("google calendar access token must be configured")
	}

	return &GoogleCalendarClient{
		accessToken: cfg.AccessToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: "https://www.googleapis.com/calendar/v3",
	}, nil
}

type eventDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type eventAttendee struct {
	Email string `json:"email"`
}

type reminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type eventReminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []reminderOverride `json:"overrides,omitempty"`
}

type calendarEventPayload struct {
	Summary     string          `json:"summary"`
	Description string          `json:"description,omitempty"`
	Start       eventDateTime   `json:"start"`
	End         eventDateTime   `json:"end"`
	Attendees   []eventAttendee `json:"attendees,omitempty"`
	Reminders   *eventReminders `json:"reminders,omitempty"`
}

type calendarEventResponse struct {
	ID string `json:"id"`
}

// Sync creates the event when existingEventID is empty, updates it otherwise
func (c *GoogleCalendarClient) Sync(ctx context.Context, calendarID, existingEventID string, event *providers.CalendarEvent) (string, error) {
	payload := buildPayload(event)

	var method, url string
	if existingEventID == "" {
		method = http.MethodPost
		url = fmt.Sprintf("%s/calendars/%s/events", c.baseURL, calendarID)
	} else {
		method = http.MethodPut
		url = fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, calendarID, existingEventID)
	}

	body, err := c.do(ctx, method, url, payload)
	if err != nil {
		return "", err
	}

	var resp calendarEventResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal calendar response: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("no event ID in calendar response")
	}

	return resp.ID, nil
}

// Delete removes the event from the external calendar
func (c *GoogleCalendarClient) Delete(ctx context.Context, calendarID, eventID string) error {
	url := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, calendarID, eventID)
	_, err := c.do(ctx, http.MethodDelete, url, nil)
	return err
}

func buildPayload(event *providers.CalendarEvent) *calendarEventPayload {
	payload := &calendarEventPayload{
		Summary:     event.Summary,
		Description: event.Description,
		Start:       eventDateTime{DateTime: event.Start.Format(time.RFC3339), TimeZone: event.Timezone},
		End:         eventDateTime{DateTime: event.End.Format(time.RFC3339), TimeZone: event.Timezone},
		Reminders: &eventReminders{
			UseDefault: false,
			Overrides: []reminderOverride{
				{Method: "popup", Minutes: 24 * 60},
				{Method: "popup", Minutes: 2 * 60},
			},
		},
	}

	for _, email := range event.Attendees {
		if email != "" {
			payload.Attendees = append(payload.Attendees, eventAttendee{Email: email})
		}
	}

	return payload
}

func (c *GoogleCalendarClient) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal calendar event: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("Google Calendar API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
