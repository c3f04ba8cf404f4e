// Package notify turns domain events into emails.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"b2bmarket/internal/events"
	"b2bmarket/internal/metrics"
)

type Notifier struct {
	mailer     Mailer
	dedup      Deduper
	adminEmail string
}

func NewNotifier(mailer Mailer, dedup Deduper, adminEmail string) *Notifier {
	return &Notifier{mailer: mailer, dedup: dedup, adminEmail: adminEmail}
}

func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}

// Handle is an events.Handler. Unknown event types are ignored. When sending
// fails the claim is released so a redelivery can retry.
func (n *Notifier) Handle(ctx context.Context, env events.Envelope) error {
	msg, ok, err := n.compose(env)
	if err != nil {
		// a payload that cannot be decoded or rendered will not succeed on retry
		loggerFrom(ctx).Error().Err(err).Str("event_id", env.EventID).Str("type", env.Type).Msg("notification skipped")
		return nil
	}
	if !ok {
		return nil
	}

	claimed, err := n.dedup.Claim(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup claim %s: %w", env.EventID, err)
	}
	if !claimed {
		loggerFrom(ctx).Debug().Str("event_id", env.EventID).Msg("notification already sent")
		return nil
	}

	err = n.mailer.Send(ctx, msg)
	metrics.RecordNotification(env.Type, err == nil)
	if err != nil {
		if relErr := n.dedup.Release(ctx, env.EventID); relErr != nil {
			loggerFrom(ctx).Warn().Err(relErr).Str("event_id", env.EventID).Msg("dedup release failed")
		}
		loggerFrom(ctx).Error().Err(err).Str("event_id", env.EventID).Str("type", env.Type).Msg("notification failed")
		return err
	}
	loggerFrom(ctx).Info().Str("event_id", env.EventID).Str("type", env.Type).Strs("to", msg.To).Msg("notification sent")
	return nil
}

func (n *Notifier) compose(env events.Envelope) (Message, bool, error) {
	switch env.Type {
	case events.TypeRequirementCreated:
		p, err := events.Decode[events.RequirementCreated](env)
		return n.render(tplRequirementCreated, p, err, p.Email)
	case events.TypeQuotationRequested:
		p, err := events.Decode[events.QuotationRequested](env)
		return n.render(tplQuotationRequested, p, err, p.SellerEmail)
	case events.TypeQuotaCreated:
		p, err := events.Decode[events.QuotaCreated](env)
		return n.render(tplQuotaCreated, p, err, p.BuyerEmail)
	case events.TypeNegotiationCreated:
		p, err := events.Decode[events.NegotiationCreated](env)
		return n.render(tplNegotiationCreated, p, err, n.adminEmail)
	case events.TypeNegotiationUpdated:
		p, err := events.Decode[events.NegotiationUpdated](env)
		return n.render(tplNegotiationUpdated, p, err, n.recipientFor(p))
	case events.TypePaymentSaved:
		p, err := events.Decode[events.PaymentSaved](env)
		return n.render(tplPaymentSaved, p, err, p.BuyerEmail)
	default:
		return Message{}, false, nil
	}
}

func (n *Notifier) recipientFor(p events.NegotiationUpdated) string {
	switch p.NextActor {
	case "seller":
		return p.SellerEmail
	case "buyer":
		return p.BuyerEmail
	case "admin":
		return n.adminEmail
	}
	// terminal: let the buyer know the outcome
	return p.BuyerEmail
}

func (n *Notifier) render(t mailTemplate, data any, decodeErr error, to string) (Message, bool, error) {
	if decodeErr != nil {
		return Message{}, false, decodeErr
	}
	if to == "" {
		return Message{}, false, nil
	}
	subject, body, err := t.render(data)
	if err != nil {
		return Message{}, false, err
	}
	return Message{To: []string{to}, Subject: subject, HTML: body}, true, nil
}
