package service

import (
	"html/template"
	"time"

	"github.com/absolute0github/band-contract-plugin/config"
	"github.com/absolute0github/band-contract-plugin/model"
	"github.com/absolute0github/band-contract-plugin/pkg/finance"
)

type templateData struct {
	Title          string
	Business       config.BusinessConfig
	Contract       *model.Contract
	Totals         finance.Totals
	Today          string
	ContractURL    string
	ExpiresOn      string
	Signed         bool
	SignatureImage template.URL
	PaymentType    string
	Amount         float64
	Method         string
}

var templateFuncs = template.FuncMap{
	"money":   finance.FormatCurrency,
	"clock":   finance.FormatClock,
	"percent": finance.FormatPercent,
	"date":    formatDate,
	"stamp":   formatStamp,
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("January 2, 2006 3:04 PM MST")
}

// formatDate renders YYYY-MM-DD as "July 4, 2026".
func formatDate(s string) string {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return s
	}
	return t.Format("January 2, 2006")
}

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; color: #333; line-height: 1.5; }
.wrapper { max-width: 720px; margin: 0 auto; padding: 24px; }
.details { background: #f9f9f9; border-left: 4px solid #c41230; padding: 16px; margin: 16px 0; }
table { width: 100%; border-collapse: collapse; }
th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #eee; }
.footer { color: #666; font-size: 13px; border-top: 1px solid #eee; margin-top: 32px; padding-top: 12px; }
.button { display: inline-block; background: #c41230; color: #fff; padding: 12px 24px; border-radius: 4px; text-decoration: none; }
</style>
</head>
<body>
<div class="wrapper">
{{template "content" .}}
<div class="footer">
<p>{{.Business.Name}}{{with .Business.Address}}<br>{{.}}{{end}}</p>
<p>{{.Business.Phone}}{{if and .Business.Phone .Business.Email}} | {{end}}{{.Business.Email}}</p>
</div>
</div>
</body>
</html>{{end}}`

const contractSentEmail = `{{define "content"}}
<h1>Your Performance Contract</h1>
<p>Hi {{.Contract.ContactPersonName}},</p>
<p>Thank you for booking {{.Business.Name}} for {{.Contract.EventName}} on {{date .Contract.PerformanceDate}}. Your contract is ready for review and signature.</p>
<div class="details">
<strong>Contract #{{.Contract.ContractNumber}}</strong><br>
Total compensation: {{money .Totals.TotalCompensation}}<br>
Deposit due ({{percent .Contract.DepositPercentage}}): {{money .Totals.DepositAmount}}
</div>
<p><a class="button" href="{{.ContractURL}}">Review &amp; Sign Contract</a></p>
<p>This link expires on {{.ExpiresOn}}.</p>
{{end}}`

const signatureConfirmationEmail = `{{define "content"}}
<h1>Contract Signed</h1>
<p>Hi {{.Contract.ContactPersonName}},</p>
<p>Thank you for signing the performance contract for {{.Contract.EventName}} on {{date .Contract.PerformanceDate}}. A copy of the signed contract and your invoice are attached.</p>
<div class="details">
<strong>Contract #{{.Contract.ContractNumber}}</strong><br>
Signed by {{.Contract.ClientSignedName}} on {{stamp .Contract.ClientSignedAt}}<br>
Deposit due: {{money .Totals.DepositAmount}}<br>
Balance due: {{money .Totals.BalanceDue}}
</div>
{{end}}`

const adminNotificationEmail = `{{define "content"}}
<h1>Contract Signed</h1>
<p>{{.Contract.ClientCompanyName}} signed contract #{{.Contract.ContractNumber}}.</p>
<div class="details">
Event: {{.Contract.EventName}}<br>
Date: {{date .Contract.PerformanceDate}}<br>
Signer: {{.Contract.ClientSignedName}} ({{.Contract.ClientSignedIP}})<br>
Total: {{money .Totals.TotalCompensation}}
</div>
{{end}}`

const paymentReceiptEmail = `{{define "content"}}
<h1>Payment Received</h1>
<p>Hi {{.Contract.ContactPersonName}},</p>
<p>We received your {{.PaymentType}} payment of {{money .Amount}} by {{.Method}} for {{.Contract.EventName}} on {{date .Contract.PerformanceDate}}. Thank you!</p>
<div class="details">
<strong>Invoice #{{.Contract.InvoiceNumber}}</strong><br>
Total compensation: {{money .Totals.TotalCompensation}}
</div>
{{end}}`

const coverLetterDocument = `{{define "content"}}
<p>{{.Today}}</p>
<p>{{.Contract.ContactPersonName}}<br>{{.Contract.ClientCompanyName}}<br>{{.Contract.StreetAddress}}<br>{{.Contract.City}}, {{.Contract.State}} {{.Contract.ZipCode}}</p>
<p>Dear {{.Contract.ContactPersonName}},</p>
{{if .Contract.CoverLetterMessage}}<p>{{.Contract.CoverLetterMessage}}</p>{{else}}<p>Thank you for choosing {{.Business.Name}} for {{.Contract.EventName}}. Please find the performance contract and invoice enclosed.</p>{{end}}
<p>Sincerely,<br>{{.Business.Name}}</p>
{{end}}`

const contractDocument = `{{define "content"}}
<h1>Performance Contract #{{.Contract.ContractNumber}}</h1>
<h2>Client</h2>
<p>{{.Contract.ClientCompanyName}}<br>{{.Contract.ContactPersonName}}<br>{{.Contract.StreetAddress}}, {{.Contract.City}}, {{.Contract.State}} {{.Contract.ZipCode}}<br>{{.Contract.Phone}} | {{.Contract.Email}}</p>
<h2>Performance</h2>
<table>
<tr><th>Event</th><td>{{.Contract.EventName}}</td></tr>
<tr><th>Date</th><td>{{date .Contract.PerformanceDate}}</td></tr>
<tr><th>Load-in</th><td>{{clock .Contract.LoadInTime}}</td></tr>
{{range .Totals.SetTimes}}<tr><th>Set {{.Number}}</th><td>{{clock .Start}} - {{clock .End}}</td></tr>
{{end}}<tr><th>Venue</th><td>{{.Contract.VenueName}} {{.Contract.VenueAddress}} {{.Contract.VenueCity}} {{.Contract.VenueState}} {{.Contract.VenueZip}}</td></tr>
<tr><th>Setting</th><td>{{.Contract.InsideOutside}}, stage: {{.Contract.StageAvailable}}</td></tr>
<tr><th>Sound / Lights / Music between sets</th><td>{{.Contract.SoundSystem}} / {{.Contract.Lights}} / {{.Contract.MusicBetweenSets}}</td></tr>
<tr><th>Audience rating</th><td>{{.Contract.AudienceRating}}</td></tr>
</table>
<h2>Services</h2>
<p>{{.Contract.ServicesDescription}}</p>
{{with .Contract.Attire}}<p>Attire: {{.}}</p>{{end}}
<h2>Compensation</h2>
<table>
<tr><th>Base compensation</th><td>{{money .Contract.BaseCompensation}}</td></tr>
{{if .Contract.MileageTravelFee}}<tr><th>Mileage / travel</th><td>{{money .Contract.MileageTravelFee}}</td></tr>{{end}}
{{if .Totals.EarlyLoadinFee}}<tr><th>Early load-in</th><td>{{money .Totals.EarlyLoadinFee}}</td></tr>{{end}}
<tr><th>Total compensation</th><td>{{money .Totals.TotalCompensation}}</td></tr>
<tr><th>Deposit ({{percent .Contract.DepositPercentage}})</th><td>{{money .Totals.DepositAmount}}</td></tr>
<tr><th>Balance due</th><td>{{money .Totals.BalanceDue}}</td></tr>
</table>
{{with .Contract.AdditionalCompensation}}<p>{{.}}</p>{{end}}
{{with .Contract.AdditionalContractNotes}}<h2>Notes</h2><p>{{.}}</p>{{end}}
<h2>Signatures</h2>
<p>Performer: {{.Business.Name}}</p>
{{if .Signed}}<p>Client: {{.Contract.ClientSignedName}}, signed {{stamp .Contract.ClientSignedAt}} from {{.Contract.ClientSignedIP}}</p>
<img alt="Client signature" src="{{.SignatureImage}}">{{else}}<p>Client: ______________________</p>{{end}}
{{end}}`

const invoiceDocument = `{{define "content"}}
<h1>Invoice #{{.Contract.InvoiceNumber}}</h1>
<p>Contract #{{.Contract.ContractNumber}} | {{.Today}}</p>
<p>Bill to: {{.Contract.ClientCompanyName}}, {{.Contract.ContactPersonName}}</p>
<table>
<tr><th>Description</th><th>Amount</th></tr>
<tr><td>Performance: {{.Contract.EventName}} ({{date .Contract.PerformanceDate}})</td><td>{{money .Contract.BaseCompensation}}</td></tr>
{{if .Contract.MileageTravelFee}}<tr><td>Mileage / travel</td><td>{{money .Contract.MileageTravelFee}}</td></tr>{{end}}
{{if .Totals.EarlyLoadinFee}}<tr><td>Early load-in</td><td>{{money .Totals.EarlyLoadinFee}}</td></tr>{{end}}
<tr><th>Total</th><th>{{money .Totals.TotalCompensation}}</th></tr>
<tr><td>Deposit due</td><td>{{money .Totals.DepositAmount}}</td></tr>
<tr><td>Balance due</td><td>{{money .Totals.BalanceDue}}</td></tr>
</table>
{{with .Business.PaymentTermsDay}}<p>Payment terms: the balance is due {{.}} days before the performance date.</p>{{end}}
{{if .Contract.LineItems}}<h2>Additional items</h2>
<table>
<tr><th>Description</th><th>Qty</th><th>Unit price</th></tr>
{{range .Contract.LineItems}}<tr><td>{{.Description}}</td><td>{{.Quantity}}</td><td>{{money .UnitPrice}}</td></tr>
{{end}}<tr><th colspan="2">Items total</th><th>{{money .Totals.LineItemsTotal}}</th></tr>
</table>{{end}}
{{end}}`

func mustTemplate(name, content string) *template.Template {
	t := template.Must(template.New(name).Funcs(templateFuncs).Parse(layoutTemplate))
	return template.Must(t.Parse(content))
}

var (
	tplContractSent  = mustTemplate("contract_sent", contractSentEmail)
	tplConfirmation  = mustTemplate("signature_confirmation", signatureConfirmationEmail)
	tplAdminNotice   = mustTemplate("admin_notification", adminNotificationEmail)
	tplPaymentNotice = mustTemplate("payment_receipt", paymentReceiptEmail)
	tplCoverLetter   = mustTemplate("cover_letter", coverLetterDocument)
	tplContract      = mustTemplate("contract", contractDocument)
	tplInvoice       = mustTemplate("invoice", invoiceDocument)
)
