package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type captureSender struct {
	sent []*Email
	err  error
}

func (s *captureSender) Send(_ context.Context, e *Email) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, e)
	return "msg-1", nil
}

func (s *captureSender) SendTemplate(_ context.Context, _ string, _ []string, _ map[string]interface{}) (string, error) {
	return "", ErrNotImplemented
}

func TestService_SendPaymentFailed(t *testing.T) {
	sender := &captureSender{}
	svc, err := NewService(sender, "billing@bracketpoint.example", "Bracket Point Billing")
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	next := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
	data := PaymentFailedEmail{
		Email:              "office@smileclinic.example",
		ClinicName:         "Smile Clinic",
		PatientName:        "Jordan Reyes",
		ScheduledPaymentID: "6a1f0a3e-9a50-4a6e-8c3e-1f2d3c4b5a69",
		Amount:             decimal.RequireFromString("185.50"),
		DueDate:            time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Reason:             "Your card was declined.",
		RetryScheduled:     true,
		NextRetryDate:      &next,
	}

	if err := svc.SendPaymentFailed(context.Background(), data); err != nil {
		t.Fatalf("SendPaymentFailed() error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email sent, got %d", len(sender.sent))
	}

	msg := sender.sent[0]
	if msg.To[0] != "office@smileclinic.example" {
		t.Errorf("To = %q, want billing contact", msg.To[0])
	}
	if msg.Subject != "Scheduled Payment Failed - Retry Scheduled" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	for _, want := range []string{"$185.50", "Your card was declined.", "March 18, 2026", "Jordan Reyes"} {
		if !strings.Contains(msg.HTMLBody, want) {
			t.Errorf("HTMLBody should contain %q", want)
		}
	}
	if strings.Contains(msg.TextBody, "<") {
		t.Errorf("TextBody should not contain markup, got: %q", msg.TextBody)
	}
	if !strings.Contains(msg.TextBody, "$185.50") {
		t.Errorf("TextBody should contain the amount")
	}
}

func TestService_SendPaymentFailed_Terminal(t *testing.T) {
	sender := &captureSender{}
	svc, err := NewService(sender, "billing@bracketpoint.example", "Bracket Point Billing")
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	data := PaymentFailedEmail{
		Email:              "office@smileclinic.example",
		ClinicName:         "Smile Clinic",
		ScheduledPaymentID: "6a1f0a3e-9a50-4a6e-8c3e-1f2d3c4b5a69",
		Amount:             decimal.RequireFromString("185.50"),
		DueDate:            time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Reason:             "Insufficient funds.",
		RetryScheduled:     false,
	}

	if err := svc.SendPaymentFailed(context.Background(), data); err != nil {
		t.Fatalf("SendPaymentFailed() error: %v", err)
	}

	msg := sender.sent[0]
	if msg.Subject != "Scheduled Payment Failed - Action Required" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.HTMLBody, "No further retries are scheduled") {
		t.Errorf("terminal failure should warn that retries are exhausted")
	}
}

func TestService_SendPaymentReceipt(t *testing.T) {
	sender := &captureSender{}
	svc, err := NewService(sender, "billing@bracketpoint.example", "Bracket Point Billing")
	if err != nil {
		t.Fatalf("NewService() error: %v", err)
	}

	data := PaymentReceiptEmail{
		Email:         "jordan@patients.example",
		ClinicName:    "Smile Clinic",
		PatientName:   "Jordan Reyes",
		PaymentNumber: "PAY-2026-00042",
		Amount:        decimal.RequireFromString("185.50"),
		PaymentDate:   time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC),
	}

	if err := svc.SendPaymentReceipt(context.Background(), data); err != nil {
		t.Fatalf("SendPaymentReceipt() error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email sent, got %d", len(sender.sent))
	}

	msg := sender.sent[0]
	if msg.Subject != "Payment Receipt - PAY-2026-00042" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	for _, want := range []string{"PAY-2026-00042", "$185.50", "March 15, 2026", "Smile Clinic"} {
		if !strings.Contains(msg.HTMLBody, want) {
			t.Errorf("HTMLBody should contain %q", want)
		}
	}
	if msg.From != "Bracket Point Billing <billing@bracketpoint.example>" {
		t.Errorf("From = %q", msg.From)
	}
}

func TestGeneratePlainText(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains []string
		excludes []string
	}{
		{
			name:     "simple paragraph",
			html:     "<p>Your payment was processed.</p>",
			contains: []string{"Your payment was processed."},
			excludes: []string{"<p>", "</p>"},
		},
		{
			name:     "line breaks",
			html:     "Amount: $185.50<br>Date: March 15<br/>Receipt: PAY-2026-00042",
			contains: []string{"Amount: $185.50", "Date: March 15", "Receipt: PAY-2026-00042"},
			excludes: []string{"<br>", "<br/>"},
		},
		{
			name:     "headings",
			html:     "<h2>Payment Received</h2><p>Thank you.</p>",
			contains: []string{"Payment Received", "Thank you."},
			excludes: []string{"<h2>", "</h2>"},
		},
		{
			name:     "nested tags",
			html:     "<div><p><strong>$185.50</strong> charged to card on file</p></div>",
			contains: []string{"$185.50", "charged to card on file"},
			excludes: []string{"<div>", "<strong>"},
		},
		{
			name:     "HTML entities",
			html:     "Smith &amp; Jones Orthodontics &nbsp; balance &lt;$500&gt;",
			contains: []string{"Smith & Jones Orthodontics", "balance <$500>"},
			excludes: []string{"&amp;", "&nbsp;", "&lt;", "&gt;"},
		},
		{
			name:     "table rows collapse to lines",
			html:     `<table><tr><td>Amount</td><td>$185.50</td></tr></table>`,
			contains: []string{"Amount", "$185.50"},
			excludes: []string{"<table>", "<td>"},
		},
		{
			name:     "empty content",
			html:     "",
			contains: []string{},
			excludes: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := generatePlainText(tt.html)

			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("generatePlainText() result should contain %q, got: %q", want, result)
				}
			}

			for _, exclude := range tt.excludes {
				if strings.Contains(result, exclude) {
					t.Errorf("generatePlainText() result should not contain %q, got: %q", exclude, result)
				}
			}
		})
	}
}
