package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"b2bmarket/internal/events"
)

type recordingMailer struct {
	sent []Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func envelope(t *testing.T, id, eventType string, data any) events.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return events.Envelope{EventID: id, Type: eventType, AggregateID: "agg", Data: raw}
}

func TestNotifierSendsEachEventOnce(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, NewMemoryDeduper(), "ops@market.test")
	env := envelope(t, "evt-1", events.TypeQuotaCreated, events.QuotaCreated{
		ReqID: "20250101REQ00101", BuyerEmail: "buyer@acme.test", Amount: 105, Quantity: 10, ProductName: "TMT Bars",
	})

	require.NoError(t, n.Handle(context.Background(), env))
	require.NoError(t, n.Handle(context.Background(), env))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"buyer@acme.test"}, mailer.sent[0].To)
	assert.Equal(t, "Quotation ready for 20250101REQ00101", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].HTML, "105.00")
}

func TestNotifierReleasesClaimWhenSendFails(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("relay refused")}
	dedup := NewMemoryDeduper()
	n := NewNotifier(mailer, dedup, "ops@market.test")
	env := envelope(t, "evt-2", events.TypePaymentSaved, events.PaymentSaved{
		PaymentID: "pay_1", BuyerEmail: "buyer@acme.test", Amount: 10, Currency: "INR", ReqIDs: []string{"r1"},
	})

	assert.Error(t, n.Handle(context.Background(), env))

	mailer.err = nil
	require.NoError(t, n.Handle(context.Background(), env))
	assert.Len(t, mailer.sent, 1)
}

func TestNotifierRoutesNegotiationUpdates(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, NewMemoryDeduper(), "ops@market.test")

	cases := []struct {
		next string
		want string
	}{
		{"seller", "sales@steelco.test"},
		{"buyer", "buyer@acme.test"},
		{"admin", "ops@market.test"},
		{"", "buyer@acme.test"},
	}
	for i, tc := range cases {
		env := envelope(t, "neg-"+tc.next+string(rune('a'+i)), events.TypeNegotiationUpdated, events.NegotiationUpdated{
			NegID: "20250101NEG123456", BuyerEmail: "buyer@acme.test", SellerEmail: "sales@steelco.test",
			From: "admin_pending", To: "seller_responded", NextActor: tc.next,
		})
		require.NoError(t, n.Handle(context.Background(), env))
		assert.Equal(t, []string{tc.want}, mailer.sent[len(mailer.sent)-1].To, tc.next)
	}
}

func TestNotifierIgnoresUnknownAndBrokenEvents(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewNotifier(mailer, NewMemoryDeduper(), "")

	require.NoError(t, n.Handle(context.Background(), events.Envelope{EventID: "x", Type: "catalog.updated"}))
	require.NoError(t, n.Handle(context.Background(), events.Envelope{EventID: "y", Type: events.TypeQuotaCreated, Data: []byte("{")}))
	// admin address not configured
	require.NoError(t, n.Handle(context.Background(), envelope(t, "z", events.TypeNegotiationCreated, events.NegotiationCreated{NegID: "n"})))
	assert.Empty(t, mailer.sent)
}

func TestSMTPMailerBuildsMultipartMessage(t *testing.T) {
	var captured []byte
	var addr string
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test", Port: 2525, From: "no-reply@market.test"})
	m.send = func(a string, auth smtp.Auth, from string, to []string, msg []byte) error {
		addr = a
		captured = msg
		return nil
	}

	err := m.Send(context.Background(), Message{
		To:      []string{"buyer@acme.test"},
		Subject: "Payment pay_1 confirmed",
		HTML:    "<h2>Payment received</h2><p>Thanks</p>",
	})
	require.NoError(t, err)

	raw := string(captured)
	assert.Equal(t, "smtp.test:2525", addr)
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "text/plain; charset=UTF-8")
	assert.Contains(t, raw, "Payment received\nThanks")
	assert.True(t, strings.HasPrefix(raw, "From: no-reply@market.test\r\n"))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Title\nline one\n- item", PlainText("<h2>Title</h2><p>line one</p><ul><li>item</li></ul>"))
}

func TestMemoryDeduperSweepsExpiredClaims(t *testing.T) {
	clock := time.Date(2025, time.June, 3, 9, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper()
	d.now = func() time.Time { return clock }
	ctx := context.Background()

	for _, id := range []string{"e1", "e2"} {
		ok, err := d.Claim(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := d.Claim(ctx, "e1")
	assert.False(t, ok)

	clock = clock.Add(ttlDedup + time.Minute)
	ok, err := d.Claim(ctx, "e3")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, d.seen, 1)

	ok, _ = d.Claim(ctx, "e1")
	assert.True(t, ok)
}
