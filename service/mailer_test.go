package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/absolute0github/band-contract-plugin/config"
	"github.com/absolute0github/band-contract-plugin/model"
)

type captureTransport struct {
	messages []*Message
	err      error
}

func (t *captureTransport) Send(ctx context.Context, msg *Message) error {
	t.messages = append(t.messages, msg)
	return t.err
}

func testMailer(transport MailTransport) *Mailer {
	return NewMailer(transport,
		config.EmailConfig{From: "band@example.com", FromName: "Skinny Moo", AdminEmail: "admin@example.com"},
		config.BusinessConfig{Name: "Skinny Moo", Email: "band@example.com", Phone: "555-0199"},
	)
}

func mailContract() *model.Contract {
	signedAt := testNow
	return &model.Contract{
		ContractNumber:      "SM-2026-0001",
		InvoiceNumber:       "INV-2026-0001",
		ClientCompanyName:   "Acme Events",
		ContactPersonName:   "Jordan Lee",
		Email:               "jordan@example.com",
		EventName:           "Summer Gala",
		PerformanceDate:     "2026-07-04",
		BaseCompensation:    1500,
		MileageTravelFee:    50,
		EarlyLoadinRequired: true,
		EarlyLoadinHours:    2,
		DepositPercentage:   30,
		TokenExpiresAt:      testNow.Add(DefaultTokenTTL),
		ClientSignedAt:      &signedAt,
		ClientSignedName:    "Jordan Lee",
		ClientSignedIP:      "203.0.113.9",
	}
}

func TestMailerSendContract(t *testing.T) {
	tr := &captureTransport{}
	m := testMailer(tr)

	if err := m.SendContract(context.Background(), mailContract(), "https://band.example.com/contract/view?token=abc"); err != nil {
		t.Fatalf("SendContract failed: %v", err)
	}
	if len(tr.messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(tr.messages))
	}
	msg := tr.messages[0]
	if msg.Subject != "Performance Contract for Summer Gala - July 4, 2026" {
		t.Errorf("Unexpected subject %q", msg.Subject)
	}
	if msg.From != "Skinny Moo <band@example.com>" {
		t.Errorf("Unexpected from %q", msg.From)
	}
	if len(msg.To) != 1 || msg.To[0] != "jordan@example.com" {
		t.Errorf("Unexpected recipients %v", msg.To)
	}
	for _, want := range []string{"token=abc", "$1,750.00", "$525.00", "June 9, 2026"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("Expected body to contain %q", want)
		}
	}
}

func TestMailerSubjectsAndRecipients(t *testing.T) {
	tr := &captureTransport{}
	m := testMailer(tr)
	ctx := context.Background()
	c := mailContract()

	attachments := []Attachment{{Filename: "SM-2026-0001-invoice.html", ContentType: documentContentType, Data: []byte("<html></html>")}}
	if err := m.SendSignatureConfirmation(ctx, c, attachments); err != nil {
		t.Fatalf("SendSignatureConfirmation failed: %v", err)
	}
	if err := m.SendAdminNotification(ctx, c); err != nil {
		t.Fatalf("SendAdminNotification failed: %v", err)
	}
	if err := m.SendPaymentReceipt(ctx, c, model.PaymentDeposit, 525, model.MethodCard); err != nil {
		t.Fatalf("SendPaymentReceipt failed: %v", err)
	}

	tests := []struct {
		subject string
		to      string
		body    string
	}{
		{"Signed Contract Confirmation - Summer Gala", "jordan@example.com", "Jordan Lee"},
		{"Contract Signed: Acme Events - Summer Gala", "admin@example.com", "203.0.113.9"},
		{"Payment Received - Summer Gala", "jordan@example.com", "Credit Card"},
	}
	if len(tr.messages) != len(tests) {
		t.Fatalf("Expected %d messages, got %d", len(tests), len(tr.messages))
	}
	for i, tt := range tests {
		msg := tr.messages[i]
		if msg.Subject != tt.subject {
			t.Errorf("Expected subject %q, got %q", tt.subject, msg.Subject)
		}
		if msg.To[0] != tt.to {
			t.Errorf("Expected recipient %s, got %s", tt.to, msg.To[0])
		}
		if !strings.Contains(msg.HTML, tt.body) {
			t.Errorf("Expected %q in body of %q", tt.body, tt.subject)
		}
	}
	if len(tr.messages[0].Attachments) != 1 {
		t.Errorf("Expected confirmation to carry attachments")
	}
}

func TestMailerMissingRecipient(t *testing.T) {
	m := NewMailer(&captureTransport{}, config.EmailConfig{}, config.BusinessConfig{Name: "Skinny Moo"})
	if err := m.SendAdminNotification(context.Background(), mailContract()); err == nil {
		t.Error("Expected error without an admin address")
	}
}

func TestBuildMIME(t *testing.T) {
	msg := &Message{
		From:    "Skinny Moo <band@example.com>",
		ReplyTo: "band@example.com",
		To:      []string{"jordan@example.com"},
		Subject: "Signed Contract Confirmation - Café Night",
		HTML:    "<p>Thanks!</p>",
		Attachments: []Attachment{
			{Filename: "contract.html", ContentType: documentContentType, Data: bytes.Repeat([]byte("x"), 200)},
		},
	}
	raw, err := buildMIME(msg, testNow)
	if err != nil {
		t.Fatalf("buildMIME failed: %v", err)
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Failed to parse message: %v", err)
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil || subject != msg.Subject {
		t.Errorf("Expected subject %q, got %q (%v)", msg.Subject, subject, err)
	}
	if parsed.Header.Get("Reply-To") != "band@example.com" {
		t.Errorf("Unexpected Reply-To %q", parsed.Header.Get("Reply-To"))
	}
	if !strings.HasSuffix(parsed.Header.Get("Message-ID"), "@example.com>") {
		t.Errorf("Unexpected Message-ID %q", parsed.Header.Get("Message-ID"))
	}

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" {
		t.Fatalf("Expected multipart/mixed, got %q (%v)", mediaType, err)
	}
	mr := multipart.NewReader(parsed.Body, params["boundary"])

	var parts []*multipart.Part
	var bodies [][]byte
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart failed: %v", err)
		}
		data, _ := io.ReadAll(p)
		parts = append(parts, p)
		bodies = append(bodies, data)
	}
	if len(parts) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(parts))
	}
	if parts[1].FileName() != "contract.html" {
		t.Errorf("Expected attachment filename contract.html, got %q", parts[1].FileName())
	}
	for _, line := range strings.Split(strings.TrimSpace(string(bodies[1])), "\r\n") {
		if len(line) > 76 {
			t.Errorf("Expected base64 lines of at most 76 chars, got %d", len(line))
		}
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(bodies[0]), "\r\n", ""))
	if err != nil || string(decoded) != "<p>Thanks!</p>" {
		t.Errorf("Unexpected html part %q (%v)", decoded, err)
	}
}

func TestSMTPTransportSend(t *testing.T) {
	tr := NewSMTPTransport(config.SMTPConfig{Host: "smtp.example.com", Port: 587})
	var gotAddr, gotFrom string
	var gotTo []string
	var gotAuth smtp.Auth
	tr.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo = addr, a, from, to
		return nil
	}

	err := tr.Send(context.Background(), &Message{From: "Skinny Moo <band@example.com>", To: []string{"jordan@example.com"}, Subject: "Hi", HTML: "<p>Hi</p>"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("Unexpected addr %s", gotAddr)
	}
	if gotFrom != "band@example.com" {
		t.Errorf("Expected envelope sender band@example.com, got %s", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "jordan@example.com" {
		t.Errorf("Unexpected recipients %v", gotTo)
	}
	if gotAuth != nil {
		t.Error("Expected no auth without a username")
	}

	tr.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }
	if err := tr.Send(context.Background(), &Message{From: "band@example.com", To: []string{"x@example.com"}}); err == nil {
		t.Error("Expected smtp error to be returned")
	}
}

func TestSMTPTransportContextCancelled(t *testing.T) {
	tr := NewSMTPTransport(config.SMTPConfig{Host: "smtp.example.com", Port: 25})
	release := make(chan struct{})
	defer close(release)
	tr.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := tr.Send(ctx, &Message{From: "band@example.com", To: []string{"x@example.com"}}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestEnvelopeAddress(t *testing.T) {
	tests := map[string]string{
		"Skinny Moo <band@example.com>": "band@example.com",
		"band@example.com":              "band@example.com",
		"<band@example.com>":            "band@example.com",
	}
	for in, want := range tests {
		if got := envelopeAddress(in); got != want {
			t.Errorf("envelopeAddress(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestResendTransportSend(t *testing.T) {
	var got ResendEmailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer re_test" {
			t.Errorf("Unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	}))
	defer server.Close()

	tr := NewResendTransport(&config.ResendConfig{APIKey: "re_test", APIURL: server.URL + "/"})
	err := tr.Send(context.Background(), &Message{
		From:        "band@example.com",
		To:          []string{"jordan@example.com"},
		Subject:     "Payment Received - Summer Gala",
		HTML:        "<p>ok</p>",
		Attachments: []Attachment{{Filename: "invoice.html", Data: []byte("inv")}},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got.Subject != "Payment Received - Summer Gala" {
		t.Errorf("Unexpected subject %q", got.Subject)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Content != base64.StdEncoding.EncodeToString([]byte("inv")) {
		t.Errorf("Unexpected attachments %+v", got.Attachments)
	}
}

func TestResendTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"Invalid from field"}`))
	}))
	defer server.Close()

	tr := NewResendTransport(&config.ResendConfig{APIKey: "re_test", APIURL: server.URL})
	err := tr.Send(context.Background(), &Message{From: "bad", To: []string{"x@example.com"}})
	if err == nil || !strings.Contains(err.Error(), "Invalid from field") {
		t.Errorf("Expected API error message, got %v", err)
	}
}
