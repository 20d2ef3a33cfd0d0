package intervention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindwell/crisis/internal/domain/alert"
	"github.com/mindwell/crisis/internal/domain/contact"
	"github.com/mindwell/crisis/internal/domain/counselor"
	"github.com/mindwell/crisis/internal/domain/safetyplan"
	"github.com/mindwell/crisis/internal/platform/notification"
	"github.com/mindwell/crisis/internal/platform/scheduler"
	"github.com/mindwell/crisis/pkg/risk"
)

// Emergency contact cascade limits. Contacts are only messaged between
// cascadeStartHour and cascadeEndHour local time unless they opted into
// around-the-clock availability or the alert is critical.
const (
	cascadeStartHour   = 8
	cascadeEndHour     = 22
	maxContactsReached = 3
)

// Config carries the crisis line numbers rendered into outreach messages.
type Config struct {
	Hotline         string
	TextLine        string
	EmergencyNumber string
}

// Dispatcher executes escalation protocols: it maps an alert's level to the
// intervention set from the protocol table, dispatches each intervention,
// and records every attempt.
type Dispatcher struct {
	repo       Repository
	alerts     *alert.Service
	counselors *counselor.Service
	contacts   *contact.Service
	plans      *safetyplan.Service
	notify     *notification.Manager
	sched      *scheduler.Scheduler
	cfg        Config
	logger     zerolog.Logger

	// now is swappable so tests can pin the cascade time window.
	now func() time.Time

	mu       sync.Mutex
	monitors map[uuid.UUID]monitorState
}

// monitorState tracks the recurring check-in tick an alert currently runs,
// so an escalation can cancel and replace it at the tighter cadence.
type monitorState struct {
	taskID   uuid.UUID
	level    risk.CrisisLevel
	override bool
}

func NewDispatcher(
	repo Repository,
	alerts *alert.Service,
	counselors *counselor.Service,
	contacts *contact.Service,
	plans *safetyplan.Service,
	notify *notification.Manager,
	sched *scheduler.Scheduler,
	cfg Config,
	logger zerolog.Logger,
) *Dispatcher {
	notify.Templates().RegisterTemplate(notification.Template{
		ID:      "peer-support-invite",
		Name:    "Peer Support Invite",
		Subject: "You're not alone",
		Body:    "Hi {{user_name}}, would you like to connect with a trained peer supporter who has been through similar experiences? Reply YES and we'll set it up.",
		Channel: notification.ChannelPush,
	})
	return &Dispatcher{
		repo:       repo,
		alerts:     alerts,
		counselors: counselors,
		contacts:   contacts,
		plans:      plans,
		notify:     notify,
		sched:      sched,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now() },
		monitors:   make(map[uuid.UUID]monitorState),
	}
}

// ExecuteProtocol runs the protocol row for the alert's current level.
// Interventions already triggered on this alert are skipped, so re-running
// after an escalation only dispatches what the new level adds. Each alert
// carries one monitoring tick at its protocol's cadence; an escalation
// replaces it, and resolution cancels it.
func (d *Dispatcher) ExecuteProtocol(ctx context.Context, alertID uuid.UUID) (*ProtocolExecutionResult, error) {
	a, err := d.alerts.Get(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	if a.Resolved() {
		return nil, alert.ErrAlertResolved
	}
	p, ok := alert.ProtocolFor(a.Level, a.OverrideActive)
	if !ok {
		return nil, fmt.Errorf("no protocol for level %s", a.Level)
	}

	result := &ProtocolExecutionResult{AlertID: a.ID, Level: a.Level}
	for _, t := range p.Interventions {
		if a.HasTriggered(t) {
			continue
		}
		d.dispatch(ctx, a, t, p, result)
		if err := d.alerts.RecordIntervention(ctx, a.ID, t); err != nil {
			d.logger.Error().Err(err).
				Str("alert_id", a.ID.String()).
				Str("type", string(t)).
				Msg("record intervention failed")
		}
		result.InterventionsTriggered = append(result.InterventionsTriggered, t)
	}

	d.ensureMonitoring(a, p)

	d.logger.Info().
		Str("alert_id", a.ID.String()).
		Str("level", a.Level.String()).
		Int("interventions", len(result.InterventionsTriggered)).
		Int("contacts_reached", result.EmergencyContactsUsed).
		Msg("protocol executed")
	return result, nil
}

// dispatch runs a single intervention type and appends its record(s) to the
// result. A counselor pool exhaustion falls over to the emergency contact
// cascade.
func (d *Dispatcher) dispatch(ctx context.Context, a *alert.CrisisAlert, t risk.InterventionType, p alert.Protocol, result *ProtocolExecutionResult) {
	switch t {
	case risk.InterventionCheckIn:
		result.Records = append(result.Records, d.sendCheckIn(ctx, a))
	case risk.InterventionPeerSupport:
		result.Records = append(result.Records, d.sendPeerSupport(ctx, a))
	case risk.InterventionCounselor:
		rec := d.assignCounselor(ctx, a, p)
		result.Records = append(result.Records, rec)
		if rec.Status == StatusFailed && !a.HasTriggered(risk.InterventionEmergencyContacts) {
			cascade := d.runContactCascade(ctx, a)
			result.Records = append(result.Records, cascade)
			result.EmergencyContactsUsed += len(cascade.ContactsReached)
			if err := d.alerts.RecordIntervention(ctx, a.ID, risk.InterventionEmergencyContacts); err == nil {
				result.InterventionsTriggered = append(result.InterventionsTriggered, risk.InterventionEmergencyContacts)
				a.InterventionsTriggered = append(a.InterventionsTriggered, risk.InterventionEmergencyContacts)
			}
		}
	case risk.InterventionTherapistAlert:
		result.Records = append(result.Records, d.alertTherapist(ctx, a))
	case risk.InterventionEmergencyContacts:
		rec := d.runContactCascade(ctx, a)
		result.Records = append(result.Records, rec)
		result.EmergencyContactsUsed += len(rec.ContactsReached)
	case risk.InterventionSafetyPlan:
		result.Records = append(result.Records, d.activateSafetyPlan(ctx, a))
	case risk.InterventionEmergencyServices:
		result.Records = append(result.Records, d.stageEmergencyServices(ctx, a))
	default:
		d.logger.Error().Str("type", string(t)).Msg("unknown intervention type")
	}
}

func (d *Dispatcher) newRecord(a *alert.CrisisAlert, t risk.InterventionType) *CrisisIntervention {
	return &CrisisIntervention{
		ID:          uuid.New(),
		AlertID:     a.ID,
		UserID:      a.UserID,
		Type:        t,
		Status:      StatusInitiated,
		InitiatedAt: d.now().UTC(),
	}
}

func (d *Dispatcher) persist(ctx context.Context, rec *CrisisIntervention) *CrisisIntervention {
	if err := d.repo.Create(ctx, rec); err != nil {
		d.logger.Error().Err(err).
			Str("alert_id", rec.AlertID.String()).
			Str("type", string(rec.Type)).
			Msg("persist intervention failed")
	}
	return rec
}

func (d *Dispatcher) templateData(a *alert.CrisisAlert) map[string]string {
	return map[string]string{
		"user_name":        a.UserID.String(),
		"hotline":          d.cfg.Hotline,
		"text_line":        d.cfg.TextLine,
		"emergency_number": d.cfg.EmergencyNumber,
		"level":            a.Level.String(),
		"alert_id":         a.ID.String(),
		"triggered_at":     a.CreatedAt.Format(time.RFC3339),
	}
}

// checkInTemplateFor maps alert severity to message tone.
func checkInTemplateFor(level risk.CrisisLevel) string {
	switch {
	case level <= risk.LevelLow:
		return "checkin-supportive"
	case level == risk.LevelMedium:
		return "checkin-concerned"
	default:
		return "checkin-urgent"
	}
}

func (d *Dispatcher) sendCheckIn(ctx context.Context, a *alert.CrisisAlert) *CrisisIntervention {
	rec := d.newRecord(a, risk.InterventionCheckIn)
	tpl := checkInTemplateFor(a.Level)
	rec.Recipient = a.UserID.String()
	rec.Channel = string(notification.ChannelPush)

	msg, err := d.notify.DeliverTemplate(ctx, tpl, d.templateData(a), rec.Recipient, notification.ChannelPush, a.ID)
	if err != nil {
		rec.Status = StatusFailed
		outcome := fmt.Sprintf("check-in delivery failed: %v", err)
		rec.Outcome = &outcome
		rec.FollowUpRequired = true
	} else {
		rec.Status = StatusDelivered
		outcome := fmt.Sprintf("check-in sent (%s)", msg.TemplateID)
		rec.Outcome = &outcome
	}
	return d.persist(ctx, rec)
}

func (d *Dispatcher) sendPeerSupport(ctx context.Context, a *alert.CrisisAlert) *CrisisIntervention {
	rec := d.newRecord(a, risk.InterventionPeerSupport)
	rec.Recipient = a.UserID.String()
	rec.Channel = string(notification.ChannelPush)

	if _, err := d.notify.DeliverTemplate(ctx, "peer-support-invite", d.templateData(a), rec.Recipient, notification.ChannelPush, a.ID); err != nil {
		rec.Status = StatusFailed
		outcome := fmt.Sprintf("peer support invite failed: %v", err)
		rec.Outcome = &outcome
	} else {
		rec.Status = StatusDelivered
		outcome := "peer support invite sent"
		rec.Outcome = &outcome
	}
	return d.persist(ctx, rec)
}

func (d *Dispatcher) assignCounselor(ctx context.Context, a *alert.CrisisAlert, p alert.Protocol) *CrisisIntervention {
	rec := d.newRecord(a, risk.InterventionCounselor)

	c, err := d.counselors.Assign(ctx)
	if err != nil {
		rec.Status = StatusFailed
		rec.FollowUpRequired = true
		var outcome string
		if errors.Is(err, counselor.ErrNoneAvailable) {
			outcome = "no counselor available; falling over to emergency contacts"
		} else {
			outcome = fmt.Sprintf("counselor assignment failed: %v", err)
		}
		rec.Outcome = &outcome
		d.logger.Warn().Str("alert_id", a.ID.String()).Msg(outcome)
		return d.persist(ctx, rec)
	}

	rec.CounselorID = &c.ID
	rec.Recipient = c.ID.String()
	rec.Channel = string(notification.ChannelPush)
	data := d.templateData(a)
	data["sla"] = p.MaxResponse.String()

	if _, err := d.notify.DeliverTemplate(ctx, "counselor-page", data, rec.Recipient, notification.ChannelPush, a.ID); err != nil {
		rec.Status = StatusFailed
		rec.FollowUpRequired = true
		outcome := fmt.Sprintf("counselor %s assigned but page failed: %v", c.Name, err)
		rec.Outcome = &outcome
	} else {
		rec.Status = StatusDelivered
		outcome := fmt.Sprintf("counselor %s assigned", c.Name)
		rec.Outcome = &outcome
	}
	return d.persist(ctx, rec)
}

func (d *Dispatcher) alertTherapist(ctx context.Context, a *alert.CrisisAlert) *CrisisIntervention {
	rec := d.newRecord(a, risk.InterventionTherapistAlert)

	items, err := d.contacts.ListByUser(ctx, a.UserID)
	if err != nil {
		rec.Status = StatusFailed
		outcome := fmt.Sprintf("list contacts failed: %v", err)
		rec.Outcome = &outcome
		return d.persist(ctx, rec)
	}

	var therapist *contact.EmergencyContact
	for _, c := range items {
		if c.Relationship != nil && strings.EqualFold(*c.Relationship, "therapist") {
			therapist = c
			break
		}
	}
	if therapist == nil || therapist.Email == nil {
		rec.Status = StatusFailed
		rec.FollowUpRequired = true
		outcome := "no treating therapist on file"
		rec.Outcome = &outcome
		return d.persist(ctx, rec)
	}

	rec.Recipient = *therapist.Email
	rec.Channel = string(notification.ChannelEmail)
	if _, err := d.notify.DeliverTemplate(ctx, "therapist-alert", d.templateData(a), rec.Recipient, notification.ChannelEmail, a.ID); err != nil {
		rec.Status = StatusFailed
		outcome := fmt.Sprintf("therapist alert failed: %v", err)
		rec.Outcome = &outcome
	} else {
		rec.Status = StatusDelivered
		outcome := fmt.Sprintf("therapist %s alerted", therapist.Name)
		rec.Outcome = &outcome
	}
	return d.persist(ctx, rec)
}

// runContactCascade messages the user's emergency contacts in priority order.
// Contacts without consent are never messaged. The cascade stops after
// maxContactsReached successful deliveries.
func (d *Dispatcher) runContactCascade(ctx context.Context, a *alert.CrisisAlert) *CrisisIntervention {
	rec := d.newRecord(a, risk.InterventionEmergencyContacts)
	rec.ContactsReached = []string{}

	items, err := d.contacts.ListByUser(ctx, a.UserID)
	if err != nil {
		rec.Status = StatusFailed
		rec.FollowUpRequired = true
		outcome := fmt.Sprintf("list contacts failed: %v", err)
		rec.Outcome = &outcome
		return d.persist(ctx, rec)
	}

	hour := d.now().Hour()
	inWindow := hour >= cascadeStartHour && hour < cascadeEndHour

	var skippedWindow, noConsent int
	for _, c := range items {
		if len(rec.ContactsReached) >= maxContactsReached {
			break
		}
		if !c.ConsentToContact {
			noConsent++
			continue
		}
		if !inWindow && !c.Available247 && a.Level < risk.LevelCritical {
			skippedWindow++
			continue
		}
		addr := c.Address()
		if addr == "" {
			continue
		}

		data := d.templateData(a)
		data["contact_name"] = c.Name
		if _, err := d.notify.DeliverTemplate(ctx, "contact-alert", data, addr, channelFor(c.PreferredChannel), a.ID); err != nil {
			d.logger.Warn().Err(err).
				Str("alert_id", a.ID.String()).
				Str("contact", c.Name).
				Msg("emergency contact unreachable")
			continue
		}
		rec.ContactsReached = append(rec.ContactsReached, c.Name)
	}

	if len(rec.ContactsReached) == 0 {
		rec.Status = StatusFailed
		rec.FollowUpRequired = true
		outcome := fmt.Sprintf("no emergency contacts reached (%d without consent, %d outside contact hours)", noConsent, skippedWindow)
		rec.Outcome = &outcome
	} else {
		rec.Status = StatusDelivered
		outcome := fmt.Sprintf("%d emergency contact(s) reached (%d without consent, %d outside contact hours)",
			len(rec.ContactsReached), noConsent, skippedWindow)
		rec.Outcome = &outcome
	}
	return d.persist(ctx, rec)
}

func (d *Dispatcher) activateSafetyPlan(ctx context.Context, a *alert.CrisisAlert) *CrisisIntervention {
	rec := d.newRecord(a, risk.InterventionSafetyPlan)
	rec.Recipient = a.UserID.String()
	rec.Channel = string(notification.ChannelPush)

	p, err := d.plans.Activate(ctx, a.UserID)
	if err != nil {
		rec.Status = StatusFailed
		rec.FollowUpRequired = true
		outcome := fmt.Sprintf("safety plan activation failed: %v", err)
		rec.Outcome = &outcome
		return d.persist(ctx, rec)
	}

	data := d.templateData(a)
	if len(p.CopingStrategies) > 0 {
		data["first_step"] = p.CopingStrategies[0]
	}
	if _, err := d.notify.DeliverTemplate(ctx, "safety-plan-reminder", data, rec.Recipient, notification.ChannelPush, a.ID); err != nil {
		rec.Status = StatusFailed
		outcome := fmt.Sprintf("safety plan activated but reminder failed: %v", err)
		rec.Outcome = &outcome
	} else {
		rec.Status = StatusDelivered
		outcome := "safety plan activated"
		if p.Synthesized {
			outcome = "default safety plan synthesized and activated"
		}
		rec.Outcome = &outcome
	}
	return d.persist(ctx, rec)
}

// stageEmergencyServices records the handoff as staged. Dispatch to emergency
// services always requires a human decision; this never places the call.
func (d *Dispatcher) stageEmergencyServices(ctx context.Context, a *alert.CrisisAlert) *CrisisIntervention {
	rec := d.newRecord(a, risk.InterventionEmergencyServices)
	rec.Status = StatusStaged
	rec.FollowUpRequired = true
	outcome := "emergency services handoff staged; awaiting human confirmation"
	rec.Outcome = &outcome

	d.logger.Warn().
		Str("alert_id", a.ID.String()).
		Str("user_id", a.UserID.String()).
		Msg("emergency services handoff staged")
	return d.persist(ctx, rec)
}

// ensureMonitoring keeps exactly one recurring check-in tick per open alert
// at the protocol's cadence. When the level or override changes, the stale
// tick is cancelled and replaced rather than left running at the old
// interval. Resolving the alert cancels the tick through the scheduler.
func (d *Dispatcher) ensureMonitoring(a *alert.CrisisAlert, p alert.Protocol) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if m, ok := d.monitors[a.ID]; ok {
		if m.level == a.Level && m.override == a.OverrideActive {
			return
		}
		d.sched.Cancel(m.taskID)
	}

	alertID := a.ID
	userID := a.UserID
	taskID := d.sched.Every(alertID, p.MonitoringInterval, func(ctx context.Context) {
		current, err := d.alerts.Get(ctx, alertID)
		if err != nil || current.Resolved() {
			d.mu.Lock()
			delete(d.monitors, alertID)
			d.mu.Unlock()
			return
		}
		if _, err := d.notify.DeliverTemplate(ctx, "followup-checkin", d.templateData(current), userID.String(), notification.ChannelPush, alertID); err != nil {
			d.logger.Warn().Err(err).
				Str("alert_id", alertID.String()).
				Msg("monitoring check-in failed")
		}
	})
	if taskID == uuid.Nil {
		delete(d.monitors, a.ID)
		return
	}
	d.monitors[a.ID] = monitorState{taskID: taskID, level: a.Level, override: a.OverrideActive}
}

// ConfirmDelivery marks an initiated intervention as delivered, e.g. when a
// channel provider posts a delivery receipt. A staged emergency-services
// handoff is confirmed the same way, by a human.
func (d *Dispatcher) ConfirmDelivery(ctx context.Context, id uuid.UUID) (*CrisisIntervention, error) {
	iv, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch iv.Status {
	case StatusDelivered, StatusResponded:
		return iv, nil
	case StatusInitiated, StatusStaged:
		if err := d.repo.UpdateStatus(ctx, id, StatusDelivered, nil); err != nil {
			return nil, err
		}
		iv.Status = StatusDelivered
		return iv, nil
	default:
		return nil, fmt.Errorf("intervention %s cannot be confirmed (status: %s)", id, iv.Status)
	}
}

// Get returns an intervention by id.
func (d *Dispatcher) Get(ctx context.Context, id uuid.UUID) (*CrisisIntervention, error) {
	return d.repo.GetByID(ctx, id)
}

// ListByAlert returns all interventions dispatched for an alert.
func (d *Dispatcher) ListByAlert(ctx context.Context, alertID uuid.UUID) ([]*CrisisIntervention, error) {
	return d.repo.ListByAlert(ctx, alertID)
}

// ListByUser returns a user's interventions, newest first.
func (d *Dispatcher) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*CrisisIntervention, int, error) {
	return d.repo.ListByUser(ctx, userID, limit, offset)
}

func channelFor(preferred string) notification.Channel {
	switch preferred {
	case "voice":
		return notification.ChannelVoice
	case "email":
		return notification.ChannelEmail
	default:
		return notification.ChannelSMS
	}
}
