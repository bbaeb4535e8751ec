// Package nurture provides the lead nurturing module: the scheduled
// outreach pipeline, the inbound router, and their HTTP surface.
package nurture

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"nurture_backend/internal/email"
	"nurture_backend/internal/events"
	apphttp "nurture_backend/internal/http"
	"nurture_backend/internal/nurture/agent"
	"nurture_backend/internal/nurture/domain"
	"nurture_backend/internal/nurture/executor"
	"nurture_backend/internal/nurture/handler"
	"nurture_backend/internal/nurture/inbound"
	"nurture_backend/internal/nurture/playbook"
	"nurture_backend/internal/nurture/repository"
	"nurture_backend/internal/sms"
	"nurture_backend/internal/whatsapp"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/validator"
)

// ModuleConfig is the config surface the nurture module consumes.
type ModuleConfig interface {
	config.NurtureConfig
	config.SweepConfig
	config.AIConfig
	config.EmailConfig
	config.SMSConfig
	config.WhatsAppConfig
}

// Module wires the nurture bounded context.
type Module struct {
	handler  *handler.Handler
	repo     *repository.Repository
	log      *logger.Logger
	eventBus events.Bus

	// Executor and Router are exported for the scheduler process and
	// sibling modules (webhook, inboundmail) that feed the engine.
	Executor *executor.Executor
	Router   *inbound.Router
}

// NewModule creates the nurture module with all dependencies wired.
// redisClient may be nil (single-instance lease only); booker may be nil
// (slot proposals are then reply-only).
func NewModule(
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	eventBus events.Bus,
	val *validator.Validator,
	booker inbound.AppointmentBooker,
	cfg ModuleConfig,
	log *logger.Logger,
) (*Module, error) {
	repo := repository.New(pool)

	pb, err := playbook.Load(cfg.GetPlaybookPath())
	if err != nil {
		return nil, fmt.Errorf("load playbook: %w", err)
	}

	outSenders := executor.Senders{}
	inSenders := inbound.Senders{}
	if s := email.NewSMTPSender(cfg); s != nil {
		outSenders.Email = s
		inSenders.Email = s
	}
	if s := sms.NewClient(cfg, log); s != nil {
		outSenders.SMS = s
		inSenders.SMS = s
	}
	if s := whatsapp.NewClient(cfg, log); s != nil {
		outSenders.WhatsApp = s
		inSenders.WhatsApp = s
	}

	var (
		composer   executor.MessageComposer
		advisor    executor.StageAdvisor
		classifier inbound.IntentClassifier
		replier    inbound.ReplyComposer
	)
	if cfg.IsAIEnabled() && cfg.GetMoonshotAPIKey() != "" {
		comp, err := agent.NewComposer(cfg.GetMoonshotAPIKey(), cfg.GetAITimeout())
		if err != nil {
			return nil, fmt.Errorf("init composer agent: %w", err)
		}
		adv, err := agent.NewStageAdvisor(cfg.GetMoonshotAPIKey(), cfg.GetAITimeout())
		if err != nil {
			return nil, fmt.Errorf("init stage advisor agent: %w", err)
		}
		ic, err := agent.NewIntentClassifier(cfg.GetMoonshotAPIKey(), cfg.GetAITimeout())
		if err != nil {
			return nil, fmt.Errorf("init intent classifier agent: %w", err)
		}
		composer, advisor, classifier, replier = comp, adv, ic, comp
	} else {
		log.Warn("AI disabled, nurture runs on playbook templates and deterministic rules only")
	}

	locks := executor.NewLeadLocks(redisClient, cfg.GetLeaseTTL(), log)
	ex := executor.New(repo, outSenders, composer, advisor, pb, locks, eventBus, cfg, cfg, log)
	router := inbound.New(repo, classifier, replier, pb, inSenders, booker, eventBus, cfg, log)
	h := handler.New(ex, router, repo, val, log)

	m := &Module{
		handler:  h,
		repo:     repo,
		log:      log,
		eventBus: eventBus,
		Executor: ex,
		Router:   router,
	}
	m.subscribe()
	return m, nil
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "nurture"
}

// RegisterRoutes registers the module's routes under /api/v1/nurture.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/nurture"))
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// subscribe wires the event-driven paths: a contact update re-primes
// leads that were paused for lack of a reachable channel.
func (m *Module) subscribe() {
	m.eventBus.Subscribe("nurture.lead.contact_updated", events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadContactUpdated)
		if !ok {
			return nil
		}
		return m.reprimeLead(ctx, e)
	}))
}

// reprimeLead puts a parked lead back on the schedule once its contact
// surface changed. Leads with a pending action or a finished lifecycle
// are left alone.
func (m *Module) reprimeLead(ctx context.Context, e events.LeadContactUpdated) error {
	lead, err := m.repo.Get(ctx, e.LeadID)
	if err != nil {
		return fmt.Errorf("load lead for re-prime: %w", err)
	}
	if domain.IsTerminalStage(lead.Stage) || lead.NextActionAt != nil {
		return nil
	}
	if _, ok := domain.SelectChannel(derefStr(lead.Email), derefStr(lead.Phone)); !ok {
		return nil
	}

	next := domain.NextDue(lead.Stage, lead.ContactCount, time.Now())
	_, err = m.repo.CommitNurture(ctx, lead.ID, lead.UpdatedAt, repository.NurtureUpdate{
		Stage:         lead.Stage,
		ContactCount:  lead.ContactCount,
		LastContactAt: lead.LastContactAt,
		LastChannel:   lead.LastChannel,
		NextActionAt:  next,
	})
	if err != nil {
		// A concurrent writer is active on this lead; it owns the
		// schedule now.
		m.log.Warn("re-prime skipped", "leadId", lead.ID, "error", err)
		return nil
	}

	if err := m.repo.AppendActivity(ctx, lead.ID, repository.LevelInfo, "Opvolging hervat na bijgewerkte contactgegevens"); err != nil {
		m.log.Warn("activity append failed", "leadId", lead.ID, "error", err)
	}
	m.log.Info("lead re-primed after contact update", "leadId", lead.ID)
	return nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
