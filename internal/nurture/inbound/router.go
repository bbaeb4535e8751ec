// Package inbound routes replies from leads: classify the intent, apply
// the stage transition, send the matching auto-reply, and escalate what
// no rule covers.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/email"
	"nurture_backend/internal/events"
	"nurture_backend/internal/nurture/agent"
	"nurture_backend/internal/nurture/domain"
	"nurture_backend/internal/nurture/playbook"
	"nurture_backend/internal/nurture/repository"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/sanitize"
)

// maxInboundLen caps what goes to the classifier. Email replies carry
// whole quoted threads; past this point it is noise.
const maxInboundLen = 4000

const excerptLen = 160

// LeadStore is the persistence surface the router drives.
type LeadStore interface {
	Get(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	SetInboundReceived(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	CommitNurture(ctx context.Context, id uuid.UUID, expectedUpdatedAt time.Time, u repository.NurtureUpdate) (repository.Lead, error)
	AppendActivity(ctx context.Context, leadID uuid.UUID, level, message string) error
}

// IntentClassifier labels an inbound message. A failure here is
// recoverable: routing falls back to the questions intent.
type IntentClassifier interface {
	Classify(ctx context.Context, leadID uuid.UUID, channel, text string) (agent.IntentResult, error)
}

// ReplyComposer optionally personalizes answer replies. Farewells,
// reassurances and slot proposals always come from the playbook so their
// wording stays fixed.
type ReplyComposer interface {
	Compose(ctx context.Context, req agent.ComposeRequest) (string, error)
}

// AppointmentBooker records a slot proposal for a viewing request.
type AppointmentBooker interface {
	ProposeSlots(ctx context.Context, leadID uuid.UUID, leadName string, slots []time.Time) error
}

// EmailSender delivers reply email.
type EmailSender interface {
	SendNurtureMessage(ctx context.Context, toEmail, subject, bodyText string) (string, error)
}

// TextSender delivers a plain text reply. SMS and WhatsApp share this
// shape.
type TextSender interface {
	SendMessage(ctx context.Context, phoneNumber, message string) (string, error)
}

// Senders bundles the per-channel delivery clients. Replies go out on
// the channel the message arrived on.
type Senders struct {
	Email    EmailSender
	SMS      TextSender
	WhatsApp TextSender
}

// Result is what the router reports back to the transport layer.
type Result struct {
	Intent        string
	NewStage      string
	AutoReplySent bool
	Escalated     bool
}

type Router struct {
	store      LeadStore
	classifier IntentClassifier
	composer   ReplyComposer
	playbook   *playbook.Playbook
	senders    Senders
	booker     AppointmentBooker
	eventBus   events.Bus
	log        *logger.Logger

	quiet domain.QuietHours
	loc   *time.Location

	now func() time.Time
}

func New(
	store LeadStore,
	classifier IntentClassifier,
	composer ReplyComposer,
	pb *playbook.Playbook,
	senders Senders,
	booker AppointmentBooker,
	eventBus events.Bus,
	cfg config.NurtureConfig,
	log *logger.Logger,
) *Router {
	loc := cfg.GetLocation()
	if loc == nil {
		loc = time.Local
	}
	return &Router{
		store:      store,
		classifier: classifier,
		composer:   composer,
		playbook:   pb,
		senders:    senders,
		booker:     booker,
		eventBus:   eventBus,
		log:        log,
		quiet: domain.QuietHours{
			Enabled:   cfg.IsQuietHoursEnabled(),
			StartHour: cfg.GetQuietHoursStart(),
			EndHour:   cfg.GetQuietHoursEnd(),
			Location:  cfg.GetLocation(),
		},
		loc: loc,
		now: time.Now,
	}
}

// HandleInbound routes one message from a lead. The response marker is
// persisted before classification so even a misrouted message counts as
// engagement. Stage transitions always apply; the auto-reply is
// best-effort on top.
func (r *Router) HandleInbound(ctx context.Context, leadID uuid.UUID, channel, body string) (Result, error) {
	if !domain.IsKnownChannel(channel) {
		return Result{}, fmt.Errorf("unknown channel %q", channel)
	}
	now := r.now()
	log := r.log.WithLeadID(leadID.String())

	lead, err := r.store.SetInboundReceived(ctx, leadID)
	if err != nil {
		return Result{}, fmt.Errorf("mark inbound received: %w", err)
	}

	text := sanitize.InboundMessage(body, maxInboundLen)
	intent := r.classifyIntent(ctx, lead, channel, text, log)
	route := domain.RouteIntent(intent)

	if route.Ignore {
		r.publishReceived(ctx, lead.ID, channel, intent, lead.Stage, false)
		log.Debug("inbound message ignored", "intent", intent)
		return Result{Intent: intent, NewStage: lead.Stage}, nil
	}

	updated, err := r.commitTransition(ctx, lead, route.NewStage, now, log)
	if err != nil {
		return Result{}, err
	}

	r.appendActivity(ctx, lead.ID, repository.LevelInfo,
		fmt.Sprintf("Inkomend bericht via %s verwerkt (%s)", channelLabel(channel), intent))
	if updated.Stage != lead.Stage {
		r.appendActivity(ctx, lead.ID, repository.LevelInfo,
			fmt.Sprintf("Fase bijgewerkt van %s naar %s", lead.Stage, updated.Stage))
		r.eventBus.Publish(ctx, events.LeadStageChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			OldStage:  lead.Stage,
			NewStage:  updated.Stage,
			Source:    "inbound",
		})
	}
	if domain.IsTerminalStage(updated.Stage) {
		r.appendActivity(ctx, lead.ID, repository.LevelSuccess,
			fmt.Sprintf("Nurturetraject afgerond (%s)", updated.Stage))
		r.eventBus.Publish(ctx, events.LeadNurtureCompleted{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Stage:     updated.Stage,
		})
	}

	replySent := false
	if route.Reply != domain.ReplyNone {
		replySent = r.sendAutoReply(ctx, lead, channel, route.Reply, intent, text, now, log)
	}

	if route.Escalate {
		r.escalate(ctx, lead, channel, intent, text)
	}

	r.publishReceived(ctx, lead.ID, channel, intent, updated.Stage, route.Escalate)
	r.log.InboundEvent(lead.ID.String(), channel, intent, updated.Stage, route.Escalate)

	return Result{
		Intent:        intent,
		NewStage:      updated.Stage,
		AutoReplySent: replySent,
		Escalated:     route.Escalate,
	}, nil
}

func (r *Router) classifyIntent(ctx context.Context, lead repository.Lead, channel, text string, log *logger.Logger) string {
	if r.classifier == nil {
		return domain.IntentQuestions
	}
	res, err := r.classifier.Classify(ctx, lead.ID, channel, text)
	if err != nil {
		log.Warn("intent classification failed, defaulting to questions", "error", err)
		return domain.IntentQuestions
	}
	intent := domain.NormalizeIntent(res.Intent)
	if res.Reason != "" {
		log.Info("intent classified", "intent", intent, "reason", res.Reason)
	}
	return intent
}

// commitTransition applies the routed stage. Inbound transitions take
// priority over scheduled runs, so a conflict gets one re-read and
// retry; losing twice means a newer inbound already carried a
// transition of its own.
func (r *Router) commitTransition(ctx context.Context, lead repository.Lead, newStage string, now time.Time, log *logger.Logger) (repository.Lead, error) {
	updated, err := r.store.CommitNurture(ctx, lead.ID, lead.UpdatedAt, transitionUpdate(lead, newStage, now))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return repository.Lead{}, fmt.Errorf("commit inbound transition: %w", err)
	}

	fresh, err := r.store.Get(ctx, lead.ID)
	if err != nil {
		return repository.Lead{}, fmt.Errorf("reload lead after conflict: %w", err)
	}
	updated, err = r.store.CommitNurture(ctx, fresh.ID, fresh.UpdatedAt, transitionUpdate(fresh, newStage, now))
	if errors.Is(err, repository.ErrConflict) {
		log.Warn("inbound transition lost twice, keeping current record", "wantStage", newStage)
		return fresh, nil
	}
	if err != nil {
		return repository.Lead{}, fmt.Errorf("commit inbound transition: %w", err)
	}
	return updated, nil
}

func transitionUpdate(lead repository.Lead, newStage string, now time.Time) repository.NurtureUpdate {
	u := repository.NurtureUpdate{
		Stage:         newStage,
		ContactCount:  lead.ContactCount,
		LastContactAt: lead.LastContactAt,
		LastChannel:   lead.LastChannel,
	}
	if !domain.IsTerminalStage(newStage) {
		u.NextActionAt = domain.NextDue(newStage, lead.ContactCount, now)
	}
	return u
}

// sendAutoReply delivers the routed reply on the arrival channel. The
// compliance gate still applies: no consent or quiet hours suppress the
// send, never the transition that already happened.
func (r *Router) sendAutoReply(ctx context.Context, lead repository.Lead, channel, reply, intent, inboundText string, now time.Time, log *logger.Logger) bool {
	gate := domain.CheckGate(channel, deref(lead.Email), deref(lead.Phone), now, r.quiet)
	switch gate.Outcome {
	case domain.GateDeferred:
		r.appendActivity(ctx, lead.ID, repository.LevelInfo, "Stille uren, automatisch antwoord niet verstuurd")
		log.Info("auto-reply suppressed during quiet hours", "channel", channel)
		return false
	case domain.GateBlocked:
		r.appendActivity(ctx, lead.ID, repository.LevelWarning, "Automatisch antwoord niet mogelijk: "+gate.Reason)
		log.Warn("auto-reply blocked", "channel", channel, "reason", gate.Reason)
		return false
	}

	text := r.buildReply(ctx, lead, channel, reply, intent, inboundText, now, log)
	if text == "" {
		return false
	}

	if err := r.deliver(ctx, lead, channel, text); err != nil {
		r.appendActivity(ctx, lead.ID, repository.LevelError,
			fmt.Sprintf("Automatisch antwoord via %s mislukt: %v", channelLabel(channel), err))
		log.Error("auto-reply send failed", "channel", channel, "error", err)
		return false
	}

	r.appendActivity(ctx, lead.ID, repository.LevelSuccess,
		fmt.Sprintf("Automatisch antwoord verzonden via %s", channelLabel(channel)))
	return true
}

func (r *Router) buildReply(ctx context.Context, lead repository.Lead, channel, reply, intent, inboundText string, now time.Time, log *logger.Logger) string {
	switch reply {
	case domain.ReplyFarewell:
		return r.playbook.Farewell(lead.Name)
	case domain.ReplyReassurance:
		return r.playbook.Reassurance(lead.Name)
	case domain.ReplySlots:
		slots := domain.ProposedSlots(now, r.loc)
		if r.booker != nil {
			if err := r.booker.ProposeSlots(ctx, lead.ID, lead.Name, slots); err != nil {
				log.Error("slot proposal not recorded", "error", err)
			}
		}
		return r.playbook.SlotProposal(lead.Name, slots, r.loc)
	case domain.ReplyAnswer:
		return r.answerReply(ctx, lead, channel, intent, inboundText, log)
	default:
		return ""
	}
}

// answerReply tries the composer for a personalized answer and falls
// back to the canned objection or generic answer.
func (r *Router) answerReply(ctx context.Context, lead repository.Lead, channel, intent, inboundText string, log *logger.Logger) string {
	if r.composer != nil {
		text, err := r.composer.Compose(ctx, agent.ComposeRequest{
			LeadID:        lead.ID,
			Name:          lead.Name,
			Stage:         lead.Stage,
			Purpose:       domain.PurposeReply,
			Channel:       channel,
			ContactCount:  lead.ContactCount,
			LastContactAt: lead.LastContactAt,
			PipelineNotes: deref(lead.PipelineNotes),
			InboundText:   inboundText,
		})
		if err == nil {
			return text
		}
		log.Warn("reply composer failed, using playbook answer", "error", err)
	}

	switch intent {
	case domain.IntentObjectionBudget, domain.IntentObjectionArea:
		return r.playbook.ObjectionAnswer(intent, lead.Name)
	default:
		return r.playbook.AnswerFallback(lead.Name)
	}
}

func (r *Router) deliver(ctx context.Context, lead repository.Lead, channel, text string) error {
	switch channel {
	case domain.ChannelEmail:
		if r.senders.Email == nil {
			return errors.New("email sender not configured")
		}
		_, err := r.senders.Email.SendNurtureMessage(ctx, deref(lead.Email), email.SubjectFor(domain.PurposeReply), text)
		return err
	case domain.ChannelSMS:
		if r.senders.SMS == nil {
			return errors.New("sms sender not configured")
		}
		_, err := r.senders.SMS.SendMessage(ctx, deref(lead.Phone), text)
		return err
	case domain.ChannelWhatsApp:
		if r.senders.WhatsApp == nil {
			return errors.New("whatsapp sender not configured")
		}
		_, err := r.senders.WhatsApp.SendMessage(ctx, deref(lead.Phone), text)
		return err
	default:
		return fmt.Errorf("unknown channel %q", channel)
	}
}

func (r *Router) escalate(ctx context.Context, lead repository.Lead, channel, intent, text string) {
	excerpt := sanitize.TruncateRunes(text, excerptLen)
	r.eventBus.Publish(ctx, events.InboundEscalated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		LeadName:  lead.Name,
		Channel:   channel,
		Intent:    intent,
		Reason:    "message did not match a routing rule",
		Excerpt:   excerpt,
	})
	r.appendActivity(ctx, lead.ID, repository.LevelWarning, "Bericht doorgezet naar een medewerker")
}

func (r *Router) publishReceived(ctx context.Context, leadID uuid.UUID, channel, intent, newStage string, escalated bool) {
	r.eventBus.Publish(ctx, events.InboundReceived{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Channel:   channel,
		Intent:    intent,
		NewStage:  newStage,
		Escalated: escalated,
	})
}

func (r *Router) appendActivity(ctx context.Context, leadID uuid.UUID, level, message string) {
	if err := r.store.AppendActivity(ctx, leadID, level, message); err != nil {
		r.log.Warn("activity append failed", "leadId", leadID, "error", err)
	}
}

func channelLabel(channel string) string {
	switch channel {
	case domain.ChannelEmail:
		return "e-mail"
	case domain.ChannelSMS:
		return "sms"
	case domain.ChannelWhatsApp:
		return "WhatsApp"
	default:
		return channel
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
