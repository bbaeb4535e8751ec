// Package executor drives one nurture attempt for one lead: classify the
// stage, check compliance, pick a channel, compose, send, persist, log.
// Every failure mode has a defined landing spot; nothing in here may take
// the coordinator down.
package executor

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
)

// Triggers name what started a run; they end up in logs and events.
const (
	TriggerSweep   = "sweep"
	TriggerManual  = "manual"
	TriggerInbound = "inbound"
)

// ErrAlreadyRunning means a run for this lead is in flight somewhere.
var ErrAlreadyRunning = errors.New("a nurture run for this lead is already in progress")

// RunOutcome summarizes where one pass ended.
type RunOutcome string

const (
	OutcomeSent       RunOutcome = "sent"
	OutcomeDeferred   RunOutcome = "deferred"
	OutcomeBlocked    RunOutcome = "blocked"
	OutcomeCompleted  RunOutcome = "completed"
	OutcomeConflict   RunOutcome = "conflict"
	OutcomeSendFailed RunOutcome = "send_failed"
)

// LeadStore is the persistence surface the executor drives.
type LeadStore interface {
	Get(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	FindDue(ctx context.Context, before time.Time, limit int) ([]repository.Lead, error)
	CommitNurture(ctx context.Context, id uuid.UUID, expectedUpdatedAt time.Time, u repository.NurtureUpdate) (repository.Lead, error)
	AppendActivity(ctx context.Context, leadID uuid.UUID, level, message string) error
}

// MessageComposer writes one outbound message. Errors are recoverable:
// the playbook fallback takes over.
type MessageComposer interface {
	Compose(ctx context.Context, req agent.ComposeRequest) (string, error)
}

// StageAdvisor optionally refines the deterministic stage classification.
type StageAdvisor interface {
	AdviseStage(ctx context.Context, req agent.AdviseRequest) (string, error)
}

// EmailSender delivers rendered nurture email.
type EmailSender interface {
	SendNurtureMessage(ctx context.Context, toEmail, subject, bodyText string) (string, error)
}

// TextSender delivers a plain text message to a phone number. SMS and
// WhatsApp share this shape.
type TextSender interface {
	SendMessage(ctx context.Context, phoneNumber, message string) (string, error)
}

// Senders bundles the per-channel delivery clients. Nil entries are
// allowed; sends on a missing channel fail like any delivery error.
type Senders struct {
	Email    EmailSender
	SMS      TextSender
	WhatsApp TextSender
}

type Executor struct {
	store    LeadStore
	senders  Senders
	composer MessageComposer
	advisor  StageAdvisor
	playbook *playbook.Playbook
	locks    *LeadLocks
	eventBus events.Bus
	log      *logger.Logger

	quiet           domain.QuietHours
	dormancyEnabled bool
	dormancyAfter   time.Duration
	batchLimit      int
	workers         int

	now func() time.Time
}

func New(
	store LeadStore,
	senders Senders,
	composer MessageComposer,
	advisor StageAdvisor,
	pb *playbook.Playbook,
	locks *LeadLocks,
	eventBus events.Bus,
	cfg config.NurtureConfig,
	sweep config.SweepConfig,
	log *logger.Logger,
) *Executor {
	return &Executor{
		store:    store,
		senders:  senders,
		composer: composer,
		advisor:  advisor,
		playbook: pb,
		locks:    locks,
		eventBus: eventBus,
		log:      log,
		quiet: domain.QuietHours{
			Enabled:   cfg.IsQuietHoursEnabled(),
			StartHour: cfg.GetQuietHoursStart(),
			EndHour:   cfg.GetQuietHoursEnd(),
			Location:  cfg.GetLocation(),
		},
		dormancyEnabled: cfg.IsDormancyEnabled(),
		dormancyAfter:   cfg.GetDormancyAfter(),
		batchLimit:      sweep.GetSweepBatchLimit(),
		workers:         sweep.GetSweepWorkers(),
		now:             time.Now,
	}
}

// ExecuteLead runs one guarded pass for the lead. ErrAlreadyRunning
// comes back when another run holds the lead.
func (e *Executor) ExecuteLead(ctx context.Context, leadID uuid.UUID, trigger string) (RunOutcome, error) {
	if !e.locks.TryAcquire(ctx, leadID) {
		return "", ErrAlreadyRunning
	}
	defer e.locks.Release(ctx, leadID)

	return e.execute(ctx, leadID, trigger)
}

// RunNow starts one immediate pass in the background, regardless of the
// due time. Returns false when a run is already in flight; the caller
// translates that into a skip.
func (e *Executor) RunNow(leadID uuid.UUID, trigger string) bool {
	ctx := context.Background()
	if !e.locks.TryAcquire(ctx, leadID) {
		return false
	}

	go func() {
		runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		defer e.locks.Release(runCtx, leadID)

		if _, err := e.execute(runCtx, leadID, trigger); err != nil {
			e.log.Error("manual nurture run failed", "leadId", leadID, "error", err)
		}
	}()
	return true
}

func (e *Executor) execute(ctx context.Context, leadID uuid.UUID, trigger string) (RunOutcome, error) {
	now := e.now()
	log := e.log.WithLeadID(leadID.String())

	lead, err := e.store.Get(ctx, leadID)
	if err != nil {
		// Store trouble is fatal for this lead only; the next sweep
		// picks it up again.
		return "", fmt.Errorf("load lead: %w", err)
	}

	run := &runState{lead: lead, trigger: trigger, now: now, log: log}
	run.stage = e.classifyStage(ctx, lead, log)

	// Terminal stages end the lifecycle: drop any scheduled action.
	if domain.IsTerminalStage(run.stage) {
		return e.completeNurture(ctx, run)
	}

	channel, hasChannel := domain.SelectChannel(deref(lead.Email), deref(lead.Phone))
	if !hasChannel {
		return e.pauseNoChannel(ctx, run)
	}
	run.channel = channel

	gate := domain.CheckGate(channel, deref(lead.Email), deref(lead.Phone), now, e.quiet)
	switch gate.Outcome {
	case domain.GateBlocked:
		return e.pauseBlocked(ctx, run, gate.Reason)
	case domain.GateDeferred:
		return e.deferToQuietHoursEnd(ctx, run, gate.ResumeAt)
	}

	run.purpose = domain.MessagePurpose(run.stage)
	text := e.composeMessage(ctx, run)

	deliveryID, sendErr := e.send(ctx, lead, channel, run.purpose, text)
	if sendErr != nil {
		return e.recordSendFailure(ctx, run, sendErr)
	}

	return e.recordSendSuccess(ctx, run, deliveryID)
}

// runState carries the intermediate results of one pass so the commit
// helpers can publish the full old-to-new transition after persisting.
type runState struct {
	lead    repository.Lead
	trigger string
	now     time.Time
	log     *logger.Logger

	stage   string
	channel string
	purpose string
}

// classifyStage combines the deterministic rules with optional advisory
// input. The advisory result only sticks when it is a member of the
// stage set; anything else keeps the deterministic answer.
func (e *Executor) classifyStage(ctx context.Context, lead repository.Lead, log *logger.Logger) string {
	stage := domain.ClassifyStage(lead.Stage, deref(lead.PipelineNotes))

	if e.advisor != nil {
		advised, err := e.advisor.AdviseStage(ctx, agent.AdviseRequest{
			LeadID:        lead.ID,
			Stage:         lead.Stage,
			PipelineNotes: deref(lead.PipelineNotes),
			ContactCount:  lead.ContactCount,
			LastContactAt: lead.LastContactAt,
			HasResponded:  lead.HasInboundResponses,
			CreatedAt:     lead.CreatedAt,
		})
		if err != nil {
			log.Warn("stage advisor unavailable, using deterministic stage", "error", err)
		} else {
			stage = domain.AcceptAdvisedStage(advised, stage)
		}
	}

	if e.shouldDemoteToDormant(stage, lead.LastContactAt) {
		log.Info("lead demoted to dormant", "previousStage", stage)
		return domain.StageDormant
	}
	return stage
}

// shouldDemoteToDormant applies the dormancy policy: a lead that was
// contacted long ago and never progressed stops following its stage
// cadence.
func (e *Executor) shouldDemoteToDormant(stage string, lastContactAt *time.Time) bool {
	if !e.dormancyEnabled || lastContactAt == nil {
		return false
	}
	switch stage {
	case domain.StageContacted, domain.StageEngaged, domain.StageNoResponse:
		return e.now().Sub(*lastContactAt) >= e.dormancyAfter
	default:
		return false
	}
}

func (e *Executor) completeNurture(ctx context.Context, run *runState) (RunOutcome, error) {
	lead := run.lead
	_, err := e.store.CommitNurture(ctx, lead.ID, lead.UpdatedAt, repository.NurtureUpdate{
		Stage:         run.stage,
		ContactCount:  lead.ContactCount,
		LastContactAt: lead.LastContactAt,
		LastChannel:   lead.LastChannel,
		NextActionAt:  nil,
	})
	if errors.Is(err, repository.ErrConflict) {
		return e.dropOnConflict(ctx, run)
	}
	if err != nil {
		return "", fmt.Errorf("commit terminal stage: %w", err)
	}
	e.publishStageChange(ctx, run, run.stage)

	e.appendActivity(ctx, lead.ID, repository.LevelSuccess, fmt.Sprintf("Nurturetraject afgerond (%s)", run.stage))
	e.eventBus.Publish(ctx, events.LeadNurtureCompleted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Stage:     run.stage,
	})
	run.log.Info("nurture completed", "stage", run.stage)
	return OutcomeCompleted, nil
}

// pauseNoChannel implements the no-eligible-channel policy: clear the
// schedule and wait for a manual run or a contact-update event instead
// of re-evaluating the same dead end every tick.
func (e *Executor) pauseNoChannel(ctx context.Context, run *runState) (RunOutcome, error) {
	lead := run.lead
	_, err := e.store.CommitNurture(ctx, lead.ID, lead.UpdatedAt, repository.NurtureUpdate{
		Stage:         run.stage,
		ContactCount:  lead.ContactCount,
		LastContactAt: lead.LastContactAt,
		LastChannel:   lead.LastChannel,
		NextActionAt:  nil,
	})
	if errors.Is(err, repository.ErrConflict) {
		return e.dropOnConflict(ctx, run)
	}
	if err != nil {
		return "", fmt.Errorf("commit channel pause: %w", err)
	}
	e.publishStageChange(ctx, run, run.stage)

	e.appendActivity(ctx, lead.ID, repository.LevelWarning, "Geen bereikbaar kanaal, opvolging gepauzeerd tot contactgegevens wijzigen")
	run.log.Info("no eligible channel, nurture paused")
	return OutcomeBlocked, nil
}

func (e *Executor) pauseBlocked(ctx context.Context, run *runState, reason string) (RunOutcome, error) {
	lead := run.lead
	_, err := e.store.CommitNurture(ctx, lead.ID, lead.UpdatedAt, repository.NurtureUpdate{
		Stage:         run.stage,
		ContactCount:  lead.ContactCount,
		LastContactAt: lead.LastContactAt,
		LastChannel:   lead.LastChannel,
		NextActionAt:  nil,
	})
	if errors.Is(err, repository.ErrConflict) {
		return e.dropOnConflict(ctx, run)
	}
	if err != nil {
		return "", fmt.Errorf("commit compliance block: %w", err)
	}
	e.publishStageChange(ctx, run, run.stage)

	e.appendActivity(ctx, lead.ID, repository.LevelInfo, "Contact niet toegestaan: "+reason)
	run.log.Info("contact blocked", "reason", reason)
	return OutcomeBlocked, nil
}

// deferToQuietHoursEnd moves the action to the end of the quiet window.
// No contact happened: the count stays put and nothing is logged as a
// send.
func (e *Executor) deferToQuietHoursEnd(ctx context.Context, run *runState, resumeAt time.Time) (RunOutcome, error) {
	lead := run.lead
	_, err := e.store.CommitNurture(ctx, lead.ID, lead.UpdatedAt, repository.NurtureUpdate{
		Stage:         run.stage,
		ContactCount:  lead.ContactCount,
		LastContactAt: lead.LastContactAt,
		LastChannel:   lead.LastChannel,
		NextActionAt:  &resumeAt,
	})
	if errors.Is(err, repository.ErrConflict) {
		return e.dropOnConflict(ctx, run)
	}
	if err != nil {
		return "", fmt.Errorf("commit quiet hours deferral: %w", err)
	}
	e.publishStageChange(ctx, run, run.stage)

	e.appendActivity(ctx, lead.ID, repository.LevelInfo,
		fmt.Sprintf("Stille uren, volgende poging om %s", resumeAt.Format("02-01 15:04")))
	run.log.Info("deferred for quiet hours", "resumeAt", resumeAt)
	return OutcomeDeferred, nil
}

// composeMessage asks the AI composer first and falls back to the
// playbook template. Composition never fails the pipeline.
func (e *Executor) composeMessage(ctx context.Context, run *runState) string {
	if e.composer != nil {
		text, err := e.composer.Compose(ctx, agent.ComposeRequest{
			LeadID:        run.lead.ID,
			Name:          run.lead.Name,
			Stage:         run.stage,
			Purpose:       run.purpose,
			Channel:       run.channel,
			ContactCount:  run.lead.ContactCount,
			LastContactAt: run.lead.LastContactAt,
			PipelineNotes: deref(run.lead.PipelineNotes),
		})
		if err == nil {
			return text
		}
		run.log.Warn("composer failed, using playbook template", "purpose", run.purpose, "error", err)
	}
	return e.playbook.OutboundMessage(run.purpose, run.lead.Name)
}

func (e *Executor) send(ctx context.Context, lead repository.Lead, channel, purpose, text string) (string, error) {
	switch channel {
	case domain.ChannelEmail:
		if e.senders.Email == nil {
			return "", errors.New("email sender not configured")
		}
		return e.senders.Email.SendNurtureMessage(ctx, deref(lead.Email), email.SubjectFor(purpose), text)
	case domain.ChannelSMS:
		if e.senders.SMS == nil {
			return "", errors.New("sms sender not configured")
		}
		return e.senders.SMS.SendMessage(ctx, deref(lead.Phone), text)
	case domain.ChannelWhatsApp:
		if e.senders.WhatsApp == nil {
			return "", errors.New("whatsapp sender not configured")
		}
		return e.senders.WhatsApp.SendMessage(ctx, deref(lead.Phone), text)
	default:
		return "", fmt.Errorf("unknown channel %q", channel)
	}
}

func (e *Executor) recordSendSuccess(ctx context.Context, run *runState, deliveryID string) (RunOutcome, error) {
	lead := run.lead
	newStage := domain.StageAfterSend(run.stage)
	newCount := lead.ContactCount + 1
	next := domain.NextDue(newStage, newCount, run.now)

	_, err := e.store.CommitNurture(ctx, lead.ID, lead.UpdatedAt, repository.NurtureUpdate{
		Stage:         newStage,
		ContactCount:  newCount,
		LastContactAt: &run.now,
		LastChannel:   &run.channel,
		NextActionAt:  next,
	})
	if errors.Is(err, repository.ErrConflict) {
		// The message went out but a newer transition won the record.
		e.appendActivity(ctx, lead.ID, repository.LevelWarning,
			fmt.Sprintf("Bericht verzonden via %s, maar niet vastgelegd door gelijktijdige wijziging", channelLabel(run.channel)))
		run.log.Warn("send result dropped after conflicting transition", "channel", run.channel)
		return OutcomeConflict, nil
	}
	if err != nil {
		return "", fmt.Errorf("commit send result: %w", err)
	}
	e.publishStageChange(ctx, run, newStage)

	e.appendActivity(ctx, lead.ID, repository.LevelSuccess,
		fmt.Sprintf("%s verzonden via %s", purposeLabel(run.purpose), channelLabel(run.channel)))
	e.eventBus.Publish(ctx, events.LeadContacted{
		BaseEvent:    events.NewBaseEvent(),
		LeadID:       lead.ID,
		Channel:      run.channel,
		Stage:        newStage,
		ContactCount: newCount,
		DeliveryID:   deliveryID,
	})
	e.log.NurtureOutcome(lead.ID.String(), string(OutcomeSent), run.channel, newCount)
	return OutcomeSent, nil
}

// recordSendFailure reschedules on the current count so the lead retries
// on its normal cadence instead of getting stuck. Transient-vs-permanent
// is the channel gateway's problem, not ours.
func (e *Executor) recordSendFailure(ctx context.Context, run *runState, sendErr error) (RunOutcome, error) {
	lead := run.lead
	next := domain.NextDue(run.stage, lead.ContactCount, run.now)

	_, err := e.store.CommitNurture(ctx, lead.ID, lead.UpdatedAt, repository.NurtureUpdate{
		Stage:         run.stage,
		ContactCount:  lead.ContactCount,
		LastContactAt: lead.LastContactAt,
		LastChannel:   lead.LastChannel,
		NextActionAt:  next,
	})
	if errors.Is(err, repository.ErrConflict) {
		return e.dropOnConflict(ctx, run)
	}
	if err != nil {
		return "", fmt.Errorf("commit send failure: %w", err)
	}
	e.publishStageChange(ctx, run, run.stage)

	e.appendActivity(ctx, lead.ID, repository.LevelError,
		fmt.Sprintf("Verzenden via %s mislukt: %v", channelLabel(run.channel), sendErr))
	run.log.Error("channel send failed", "channel", run.channel, "error", sendErr)
	return OutcomeSendFailed, nil
}

func (e *Executor) dropOnConflict(ctx context.Context, run *runState) (RunOutcome, error) {
	e.appendActivity(ctx, run.lead.ID, repository.LevelInfo, "Gelijktijdige wijziging gedetecteerd, beurt overgeslagen")
	run.log.Info("conflicting transition, dropping run")
	return OutcomeConflict, nil
}

// publishStageChange emits the transition from the loaded stage to the
// committed one. Call only after a successful commit.
func (e *Executor) publishStageChange(ctx context.Context, run *runState, committedStage string) {
	if committedStage == run.lead.Stage {
		return
	}
	e.eventBus.Publish(ctx, events.LeadStageChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    run.lead.ID,
		OldStage:  run.lead.Stage,
		NewStage:  committedStage,
		Source:    run.trigger,
	})
}

// appendActivity is best-effort: a full activity log must never block a
// nurture decision that already happened.
func (e *Executor) appendActivity(ctx context.Context, leadID uuid.UUID, level, message string) {
	if err := e.store.AppendActivity(ctx, leadID, level, message); err != nil {
		e.log.Warn("activity append failed", "leadId", leadID, "error", err)
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

func purposeLabel(purpose string) string {
	switch purpose {
	case domain.PurposeWelcome:
		return "Welkomstbericht"
	case domain.PurposeReengage:
		return "Heractivatiebericht"
	default:
		return "Opvolgbericht"
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
