// Package notification delivers crisis outreach messages over SMS, email,
// voice, and push channels, with template rendering, delivery timeouts, and
// delivery confirmation tracking.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Channels
// ---------------------------------------------------------------------------

// Channel is the medium used to reach a recipient.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelVoice Channel = "voice"
	ChannelPush  Channel = "push"
)

// Message statuses.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// ---------------------------------------------------------------------------
// Message
// ---------------------------------------------------------------------------

// Message is a single outbound crisis communication.
type Message struct {
	ID           uuid.UUID         `json:"id"`
	AlertID      uuid.UUID         `json:"alert_id,omitempty"`
	Channel      Channel           `json:"channel"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject,omitempty"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	DeliveredAt  *time.Time        `json:"delivered_at,omitempty"`
	ConfirmedAt  *time.Time        `json:"confirmed_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Sender Interfaces
// ---------------------------------------------------------------------------

// SMSSender sends a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// EmailSender sends an email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// VoiceCaller places an automated voice call that reads the body aloud.
type VoiceCaller interface {
	PlaceCall(ctx context.Context, to, body string) error
}

// PushSender delivers an in-app push notification.
type PushSender interface {
	SendPush(ctx context.Context, userID, title, body string) error
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template is a reusable outreach message with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// TemplateEngine holds outreach templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the crisis outreach
// templates pre-registered. Hotline and text line placeholders are filled
// from configuration at render time.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "checkin-supportive",
			Name:    "Supportive Check-In",
			Subject: "Checking in",
			Body:    "Hi {{user_name}}, we noticed you might be having a tough time. How are you feeling right now? Reply to let us know.",
			Channel: ChannelPush,
		},
		{
			ID:      "checkin-concerned",
			Name:    "Concerned Check-In",
			Subject: "We're here for you",
			Body:    "Hi {{user_name}}, we're concerned about how you're doing. You're not alone. Would you like to talk to someone? The crisis line is available 24/7 at {{hotline}}.",
			Channel: ChannelPush,
		},
		{
			ID:      "checkin-urgent",
			Name:    "Urgent Check-In",
			Subject: "Please respond when you can",
			Body:    "{{user_name}}, your safety matters to us. A counselor is standing by. Call {{hotline}} or {{text_line}} any time. Please reply so we know you're okay.",
			Channel: ChannelSMS,
		},
		{
			ID:      "contact-alert",
			Name:    "Emergency Contact Alert",
			Subject: "Someone you care about may need support",
			Body:    "Hello {{contact_name}}, {{user_name}} listed you as an emergency contact. They may be going through a crisis and could use your support right now. If you believe they are in immediate danger, call {{emergency_number}}.",
			Channel: ChannelSMS,
		},
		{
			ID:      "counselor-page",
			Name:    "Counselor Assignment Page",
			Subject: "Crisis assignment: {{level}}",
			Body:    "You have been assigned to a {{level}} crisis alert ({{alert_id}}). User: {{user_name}}. Respond within {{sla}}.",
			Channel: ChannelPush,
		},
		{
			ID:      "therapist-alert",
			Name:    "Treating Therapist Alert",
			Subject: "Crisis alert for your client",
			Body:    "Your client {{user_name}} triggered a {{level}} crisis alert at {{triggered_at}}. Review the alert and recent assessment history in your dashboard.",
			Channel: ChannelEmail,
		},
		{
			ID:      "safety-plan-reminder",
			Name:    "Safety Plan Reminder",
			Subject: "Your safety plan",
			Body:    "{{user_name}}, this is a good moment to use your safety plan. Your first coping step: {{first_step}}. If things feel unmanageable, call {{hotline}}.",
			Channel: ChannelPush,
		},
		{
			ID:      "emergency-handoff",
			Name:    "Emergency Services Handoff",
			Subject: "Emergency dispatch notification",
			Body:    "Emergency services handoff initiated for {{user_name}} at {{triggered_at}}. Last known location: {{location}}. Reference: {{alert_id}}.",
			Channel: ChannelVoice,
		},
		{
			ID:      "followup-checkin",
			Name:    "Follow-Up Check-In",
			Subject: "Following up",
			Body:    "Hi {{user_name}}, just following up after earlier. How are things now? Remember {{hotline}} is always available.",
			Channel: ChannelPush,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement. Keys
// present in the template but absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ChannelFor returns the default channel for a template.
func (e *TemplateEngine) ChannelFor(templateID string) (Channel, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.templates[templateID]
	if !ok {
		return "", fmt.Errorf("template %q not found", templateID)
	}
	return t.Channel, nil
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Manager dispatches messages through channel senders, bounds each delivery
// attempt with a timeout, and tracks delivery and confirmation state.
type Manager struct {
	sms       SMSSender
	email     EmailSender
	voice     VoiceCaller
	push      PushSender
	templates *TemplateEngine
	timeout   time.Duration
	logger    zerolog.Logger

	mu       sync.RWMutex
	messages map[uuid.UUID]*Message
}

// NewManager constructs a Manager. A nil sender means the channel is
// unavailable and deliveries to it fail.
func NewManager(sms SMSSender, email EmailSender, voice VoiceCaller, push PushSender, tpl *TemplateEngine, timeout time.Duration, logger zerolog.Logger) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		sms:       sms,
		email:     email,
		voice:     voice,
		push:      push,
		templates: tpl,
		timeout:   timeout,
		logger:    logger,
		messages:  make(map[uuid.UUID]*Message),
	}
}

// Templates returns the manager's template engine.
func (m *Manager) Templates() *TemplateEngine {
	return m.templates
}

// Deliver sends the message over its channel, bounded by the manager's
// delivery timeout. The message is stored regardless of outcome so failed
// deliveries remain visible.
func (m *Manager) Deliver(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now().UTC()
	msg.Status = StatusPending

	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	sendErr := m.send(sendCtx, msg)

	if sendErr != nil {
		msg.Status = StatusFailed
		msg.Error = sendErr.Error()
		m.logger.Warn().
			Str("message_id", msg.ID.String()).
			Str("channel", string(msg.Channel)).
			Err(sendErr).
			Msg("delivery failed")
	} else {
		msg.Status = StatusDelivered
		now := time.Now().UTC()
		msg.DeliveredAt = &now
	}

	m.mu.Lock()
	m.messages[msg.ID] = msg
	m.mu.Unlock()

	return sendErr
}

func (m *Manager) send(ctx context.Context, msg *Message) error {
	switch msg.Channel {
	case ChannelSMS:
		if m.sms == nil {
			return errors.New("sms channel unavailable")
		}
		return m.sms.SendSMS(ctx, msg.Recipient, msg.Body)
	case ChannelEmail:
		if m.email == nil {
			return errors.New("email channel unavailable")
		}
		return m.email.SendEmail(ctx, msg.Recipient, msg.Subject, msg.Body)
	case ChannelVoice:
		if m.voice == nil {
			return errors.New("voice channel unavailable")
		}
		return m.voice.PlaceCall(ctx, msg.Recipient, msg.Body)
	case ChannelPush:
		if m.push == nil {
			return errors.New("push channel unavailable")
		}
		return m.push.SendPush(ctx, msg.Recipient, msg.Subject, msg.Body)
	default:
		return fmt.Errorf("unsupported channel: %s", msg.Channel)
	}
}

// DeliverTemplate renders a template and delivers the resulting message over
// the template's default channel, or over channel when it is non-empty.
func (m *Manager) DeliverTemplate(ctx context.Context, templateID string, data map[string]string, recipient string, channel Channel, alertID uuid.UUID) (*Message, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	if channel == "" {
		channel, err = m.templates.ChannelFor(templateID)
		if err != nil {
			return nil, err
		}
	}

	msg := &Message{
		AlertID:      alertID,
		Channel:      channel,
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}
	if err := m.Deliver(ctx, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// Confirm records that the recipient acknowledged the message, e.g. an
// emergency contact tapping the confirmation link. Only delivered messages
// can be confirmed; confirming twice is a no-op.
func (m *Manager) Confirm(_ context.Context, id uuid.UUID) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	switch msg.Status {
	case StatusConfirmed:
		return msg, nil
	case StatusDelivered:
		msg.Status = StatusConfirmed
		now := time.Now().UTC()
		msg.ConfirmedAt = &now
		return msg, nil
	default:
		return nil, fmt.Errorf("message %s cannot be confirmed (status: %s)", id, msg.Status)
	}
}

// Get retrieves a message by ID.
func (m *Manager) Get(_ context.Context, id uuid.UUID) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

// ListByAlert returns all messages delivered for an alert.
func (m *Manager) ListByAlert(_ context.Context, alertID uuid.UUID) []*Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Message
	for _, msg := range m.messages {
		if msg.AlertID == alertID {
			out = append(out, msg)
		}
	}
	return out
}

// Stats returns message counts grouped by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make(map[string]int)
	for _, msg := range m.messages {
		stats[msg.Status]++
	}
	return stats
}

// ---------------------------------------------------------------------------
// Log Sender
// ---------------------------------------------------------------------------

// LogSender implements all four channel interfaces by writing the delivery
// to the structured log. It is the sender used when no gateway credentials
// are configured, keeping every environment runnable without a telecom
// account.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) send(channel Channel, to, subject, body string) error {
	s.logger.Info().
		Str("channel", string(channel)).
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("notification delivered via log sender")
	return nil
}

func (s *LogSender) SendSMS(ctx context.Context, to, body string) error {
	return s.send(ChannelSMS, to, "", body)
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	return s.send(ChannelEmail, to, subject, body)
}

func (s *LogSender) PlaceCall(ctx context.Context, to, body string) error {
	return s.send(ChannelVoice, to, "", body)
}

func (s *LogSender) SendPush(ctx context.Context, userID, title, body string) error {
	return s.send(ChannelPush, userID, title, body)
}

// ---------------------------------------------------------------------------
// Mock Senders (test doubles)
// ---------------------------------------------------------------------------

// Call records a single delivery attempt against a mock sender.
type Call struct {
	To      string
	Subject string
	Body    string
}

// MockSender is a test double implementing all four channel interfaces.
type MockSender struct {
	mu         sync.Mutex
	calls      []Call
	ShouldFail bool
	FailError  string
	Delay      time.Duration
}

func (m *MockSender) record(ctx context.Context, to, subject, body string) error {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

func (m *MockSender) SendSMS(ctx context.Context, to, body string) error {
	return m.record(ctx, to, "", body)
}

func (m *MockSender) SendEmail(ctx context.Context, to, subject, body string) error {
	return m.record(ctx, to, subject, body)
}

func (m *MockSender) PlaceCall(ctx context.Context, to, body string) error {
	return m.record(ctx, to, "", body)
}

func (m *MockSender) SendPush(ctx context.Context, userID, title, body string) error {
	return m.record(ctx, userID, title, body)
}

// Calls returns a copy of recorded calls.
func (m *MockSender) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
