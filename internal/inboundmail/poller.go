// Package inboundmail polls an IMAP mailbox for replies from leads and
// routes them into the nurture engine. Replies arriving by email need no
// provider webhook; the poller matches unseen messages to leads by their
// from-address.
package inboundmail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nurture_backend/internal/nurture/domain"
	"nurture_backend/internal/nurture/inbound"
	"nurture_backend/internal/nurture/repository"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"

	imap "github.com/BrianLeishman/go-imap"
	"github.com/google/uuid"
)

const defaultPollInterval = 2 * time.Minute

// LeadResolver matches a from-address to a lead.
type LeadResolver interface {
	FindByEmail(ctx context.Context, email string) (repository.Lead, error)
}

// MessageRouter routes one matched inbound message.
type MessageRouter interface {
	HandleInbound(ctx context.Context, leadID uuid.UUID, channel, body string) (inbound.Result, error)
}

// Poller periodically reads unseen mailbox messages. Messages are marked
// seen only after routing succeeds, so a transient failure retries on
// the next poll.
type Poller struct {
	cfg    config.IMAPConfig
	leads  LeadResolver
	router MessageRouter
	log    *logger.Logger
}

func New(cfg config.IMAPConfig, leads LeadResolver, router MessageRouter, log *logger.Logger) *Poller {
	return &Poller{cfg: cfg, leads: leads, router: router, log: log}
}

// Run blocks until the context is cancelled. Without an IMAP host the
// poller reports itself disabled and returns immediately.
func (p *Poller) Run(ctx context.Context) {
	if p == nil || !p.cfg.IsIMAPEnabled() {
		p.log.Info("inbound mail poller disabled, no IMAP host configured")
		return
	}

	interval := p.cfg.GetIMAPPollInterval()
	if interval <= 0 {
		interval = defaultPollInterval
	}

	p.log.Info("inbound mail poller started",
		"host", p.cfg.GetIMAPHost(),
		"interval", interval.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("inbound mail poller stopped")
			return
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				p.log.Error("mailbox poll failed", "error", err)
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	mailbox, err := imap.New(
		p.cfg.GetIMAPUsername(),
		p.cfg.GetIMAPPassword(),
		p.cfg.GetIMAPHost(),
		p.cfg.GetIMAPPort(),
	)
	if err != nil {
		return fmt.Errorf("imap connect: %w", err)
	}
	defer func() { _ = mailbox.Close() }()

	if err := mailbox.SelectFolder("INBOX"); err != nil {
		return fmt.Errorf("select inbox: %w", err)
	}

	uids, err := mailbox.GetUIDs("UNSEEN")
	if err != nil {
		return fmt.Errorf("list unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil
	}

	messages, err := mailbox.GetEmails(uids...)
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}

	for uid, msg := range messages {
		if msg == nil {
			continue
		}
		if p.handleMessage(ctx, uid, msg) {
			if err := mailbox.MarkSeen(uid); err != nil {
				p.log.Warn("failed to mark message seen", "uid", uid, "error", err)
			}
		}
	}
	return nil
}

// handleMessage routes one message and reports whether it is done with
// it. Messages from unknown senders are done; routing failures are not,
// so they stay unseen for the next poll.
func (p *Poller) handleMessage(ctx context.Context, uid int, msg *imap.Email) bool {
	from := firstAddress(msg.From)
	if from == "" {
		return true
	}

	body := strings.TrimSpace(msg.Text)
	if body == "" {
		body = strings.TrimSpace(msg.HTML)
	}
	if body == "" {
		p.log.Debug("inbound mail without body skipped", "uid", uid, "from", from)
		return true
	}

	lead, err := p.leads.FindByEmail(ctx, from)
	if errors.Is(err, repository.ErrNotFound) {
		p.log.Debug("inbound mail from unknown sender skipped", "uid", uid, "from", from)
		return true
	}
	if err != nil {
		p.log.DatabaseError("inbound mail lead lookup", err)
		return false
	}

	if _, err := p.router.HandleInbound(ctx, lead.ID, domain.ChannelEmail, body); err != nil {
		p.log.Error("failed to route inbound mail", "uid", uid, "leadId", lead.ID, "error", err)
		return false
	}
	return true
}

func firstAddress(addresses imap.EmailAddresses) string {
	for address := range addresses {
		return strings.ToLower(strings.TrimSpace(address))
	}
	return ""
}
