package email

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmailTemplate defines the interface for email templates
type EmailTemplate interface {
	Subject() string
	TemplateName() string
}

// PaymentFailedEmail alerts the clinic's billing contact that a
// scheduled charge failed.
type PaymentFailedEmail struct {
	Email              string
	ClinicName         string
	PatientName        string // may be empty when the failure preceded account resolution
	ScheduledPaymentID string
	Amount             decimal.Decimal
	DueDate            time.Time
	Reason             string
	RetryScheduled     bool
	NextRetryDate      *time.Time
}

func (e PaymentFailedEmail) Subject() string {
	if e.RetryScheduled {
		return "Scheduled Payment Failed - Retry Scheduled"
	}
	return "Scheduled Payment Failed - Action Required"
}

func (e PaymentFailedEmail) TemplateName() string {
	return "payment_failed.html"
}

// AmountDisplay formats the charge amount for the template body.
func (e PaymentFailedEmail) AmountDisplay() string {
	return "$" + e.Amount.StringFixed(2)
}

// DueDateDisplay formats the original due date.
func (e PaymentFailedEmail) DueDateDisplay() string {
	return e.DueDate.Format("January 2, 2006")
}

// NextRetryDisplay formats the next attempt date, empty when none.
func (e PaymentFailedEmail) NextRetryDisplay() string {
	if e.NextRetryDate == nil {
		return ""
	}
	return e.NextRetryDate.Format("January 2, 2006")
}

// PaymentReceiptEmail confirms a successful charge to the account holder.
type PaymentReceiptEmail struct {
	Email         string
	ClinicName    string
	PatientName   string
	PaymentNumber string
	Amount        decimal.Decimal
	PaymentDate   time.Time
}

func (e PaymentReceiptEmail) Subject() string {
	return "Payment Receipt - " + e.PaymentNumber
}

func (e PaymentReceiptEmail) TemplateName() string {
	return "payment_receipt.html"
}

// AmountDisplay formats the paid amount for the template body.
func (e PaymentReceiptEmail) AmountDisplay() string {
	return "$" + e.Amount.StringFixed(2)
}

// PaymentDateDisplay formats the ledger date.
func (e PaymentReceiptEmail) PaymentDateDisplay() string {
	return e.PaymentDate.Format("January 2, 2006")
}
