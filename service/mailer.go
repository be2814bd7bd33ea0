package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"html/template"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/absolute0github/band-contract-plugin/config"
	"github.com/absolute0github/band-contract-plugin/model"
	"github.com/absolute0github/band-contract-plugin/pkg/logger"
)

// Notifier delivers lifecycle emails.
type Notifier interface {
	SendContract(ctx context.Context, c *model.Contract, contractURL string) error
	SendSignatureConfirmation(ctx context.Context, c *model.Contract, attachments []Attachment) error
	SendAdminNotification(ctx context.Context, c *model.Contract) error
	SendPaymentReceipt(ctx context.Context, c *model.Contract, typ model.PaymentType, amount float64, method model.PaymentMethod) error
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a rendered email ready for a transport.
type Message struct {
	From        string
	ReplyTo     string
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// MailTransport hands a message to a delivery backend.
type MailTransport interface {
	Send(ctx context.Context, msg *Message) error
}

// Mailer renders the lifecycle emails and sends them through a transport.
type Mailer struct {
	transport  MailTransport
	business   config.BusinessConfig
	from       string
	adminEmail string
}

func NewMailer(transport MailTransport, emailCfg config.EmailConfig, business config.BusinessConfig) *Mailer {
	from := emailCfg.From
	if from == "" {
		from = business.Email
	}
	if emailCfg.FromName != "" && from != "" {
		from = mime.QEncoding.Encode("utf-8", emailCfg.FromName) + " <" + from + ">"
	}
	admin := emailCfg.AdminEmail
	if admin == "" {
		admin = business.Email
	}
	return &Mailer{transport: transport, business: business, from: from, adminEmail: admin}
}

func (m *Mailer) render(tpl *template.Template, data *templateData) (string, error) {
	data.Business = m.business
	if data.Contract != nil {
		data.Totals = data.Contract.Totals()
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", tpl.Name(), err)
	}
	return buf.String(), nil
}

func (m *Mailer) send(ctx context.Context, to, subject string, tpl *template.Template, data *templateData, attachments []Attachment) error {
	if to == "" {
		return fmt.Errorf("no recipient for %q", subject)
	}
	data.Title = subject
	html, err := m.render(tpl, data)
	if err != nil {
		return err
	}
	return m.transport.Send(ctx, &Message{
		From:        m.from,
		ReplyTo:     m.business.Email,
		To:          []string{to},
		Subject:     subject,
		HTML:        html,
		Attachments: attachments,
	})
}

func (m *Mailer) SendContract(ctx context.Context, c *model.Contract, contractURL string) error {
	subject := fmt.Sprintf("Performance Contract for %s - %s", c.EventName, formatDate(c.PerformanceDate))
	return m.send(ctx, c.Email, subject, tplContractSent, &templateData{
		Contract:    c,
		ContractURL: contractURL,
		ExpiresOn:   c.TokenExpiresAt.Format("January 2, 2006"),
	}, nil)
}

func (m *Mailer) SendSignatureConfirmation(ctx context.Context, c *model.Contract, attachments []Attachment) error {
	subject := fmt.Sprintf("Signed Contract Confirmation - %s", c.EventName)
	return m.send(ctx, c.Email, subject, tplConfirmation, &templateData{Contract: c}, attachments)
}

func (m *Mailer) SendAdminNotification(ctx context.Context, c *model.Contract) error {
	subject := fmt.Sprintf("Contract Signed: %s - %s", c.ClientCompanyName, c.EventName)
	return m.send(ctx, m.adminEmail, subject, tplAdminNotice, &templateData{Contract: c}, nil)
}

func (m *Mailer) SendPaymentReceipt(ctx context.Context, c *model.Contract, typ model.PaymentType, amount float64, method model.PaymentMethod) error {
	subject := fmt.Sprintf("Payment Received - %s", c.EventName)
	return m.send(ctx, c.Email, subject, tplPaymentNotice, &templateData{
		Contract:    c,
		PaymentType: string(typ),
		Amount:      amount,
		Method:      method.Label(),
	}, nil)
}

// LogTransport only logs outgoing mail. Used when no mail backend is configured.
type LogTransport struct{}

func (LogTransport) Send(ctx context.Context, msg *Message) error {
	logger.Info(ctx, "email not delivered, log transport",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
	)
	return nil
}

// SMTPTransport delivers mail over SMTP with optional PLAIN auth.
type SMTPTransport struct {
	cfg      config.SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{cfg: cfg, sendMail: smtp.SendMail}
}

func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	raw, err := buildMIME(msg, time.Now())
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)

	done := make(chan error, 1)
	go func() {
		done <- t.sendMail(addr, auth, envelopeAddress(msg.From), msg.To, raw)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// envelopeAddress strips a display name from "Name <addr>".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	return from
}

// buildMIME renders msg as multipart/mixed with an HTML part and base64 attachments.
func buildMIME(msg *Message, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=UTF-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(part, []byte(msg.HTML)); err != nil {
		return nil, err
	}
	for _, a := range msg.Attachments {
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {a.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, a.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	headers := [][2]string{
		{"From", msg.From},
		{"To", strings.Join(msg.To, ", ")},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"Message-ID", "<" + messageID() + "@" + domainOf(envelopeAddress(msg.From)) + ">"},
		{"MIME-Version", "1.0"},
		{"Content-Type", "multipart/mixed; boundary=" + w.Boundary()},
	}
	if msg.ReplyTo != "" {
		headers = append(headers, [2]string{"Reply-To", msg.ReplyTo})
	}
	for _, h := range headers {
		fmt.Fprintf(&out, "%s: %s\r\n", h[0], h[1])
	}
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// writeBase64 wraps encoded output at 76 columns.
func writeBase64(w interface{ Write([]byte) (int, error) }, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := w.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}

func messageID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return addr[i+1:]
	}
	return "localhost"
}
