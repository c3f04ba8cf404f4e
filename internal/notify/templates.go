package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
)

type mailTemplate struct {
	subject *texttemplate.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) mailTemplate {
	return mailTemplate{
		subject: texttemplate.Must(texttemplate.New(name + ".subject").Parse(subject)),
		body:    template.Must(template.New(name).Parse(layoutHead + body + layoutFoot)),
	}
}

func (t mailTemplate) render(data any) (subject, body string, err error) {
	var sb strings.Builder
	if err := t.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	var bb bytes.Buffer
	if err := t.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return strings.TrimSpace(sb.String()), bb.String(), nil
}

const layoutHead = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;color:#222">`
const layoutFoot = `<p style="color:#888;font-size:12px">This is an automated message from the marketplace. Please do not reply.</p></body></html>`

var (
	tplRequirementCreated = mustTemplate("requirement.created",
		`Requirement {{.ReqID}} received`,
		`<h2>Thanks, {{.Name}}</h2>
<p>We have received your requirement <strong>{{.ReqID}}</strong>{{if .ProductName}} for {{.ProductName}}{{end}}.</p>
<p>Quantity: {{.MinQty}} {{.Measurement}}</p>
<p>Our team is reaching out to verified sellers and will share quotations shortly.</p>`)

	tplQuotationRequested = mustTemplate("quotation.requested",
		`New quotation request {{.RequirementID}}`,
		`<h2>New requirement for you</h2>
<p>You have been selected to quote for requirement <strong>{{.RequirementID}}</strong>{{if .PID}} (product {{.PID}}){{end}}.</p>
<p>Please submit your price from the seller dashboard.</p>`)

	tplQuotaCreated = mustTemplate("quota.created",
		`Quotation ready for {{.ReqID}}`,
		`<h2>You have a new quotation</h2>
<p>A seller has quoted <strong>{{printf "%.2f" .Amount}}</strong> for {{if .ProductName}}{{.ProductName}}{{else}}requirement {{.ReqID}}{{end}} ({{.Quantity}} units).</p>
<p>You can accept the price or start a negotiation from your dashboard.</p>`)

	tplNegotiationCreated = mustTemplate("negotiation.created",
		`Negotiation {{.NegID}} opened`,
		`<h2>New negotiation</h2>
<p>{{.BuyerEmail}} offered <strong>{{printf "%.2f" .Amount}}</strong> for {{.Quantity}} units on requirement {{.ReqID}} (seller {{.SellerEmail}}).</p>`)

	tplNegotiationUpdated = mustTemplate("negotiation.updated",
		`Negotiation {{.NegID}}: {{.To}}`,
		`<h2>Negotiation update</h2>
<p>Negotiation <strong>{{.NegID}}</strong> moved from {{.From}} to <strong>{{.To}}</strong>.</p>
<p>Current amount: {{printf "%.2f" .NewAmount}} for {{.Quantity}} units.</p>
{{if .NextActor}}<p>Your response is needed.</p>{{end}}`)

	tplPaymentSaved = mustTemplate("payment.saved",
		`Payment {{.PaymentID}} confirmed`,
		`<h2>Payment received</h2>
<p>We received <strong>{{printf "%.2f" .Amount}} {{.Currency}}</strong> for {{len .ReqIDs}} requirement(s).</p>
<p>Payment reference: {{.PaymentID}}</p>`)
)
