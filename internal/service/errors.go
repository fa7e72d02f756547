package service

import (
	"github.com/AdansBatista/orca-sub008/internal/domain"
)

// Charge precondition errors - recorded as the failure reason on the
// scheduled payment when a charge cannot be attempted at all.
var (
	ErrAutoChargeDisabled = domain.Errorf(domain.EINVALID, "", "Auto-charge is disabled for this plan")
	ErrNoGatewayCustomer  = domain.Errorf(domain.EPAYMENT, "", "No gateway customer on file")
	ErrNoPaymentMethod    = domain.Errorf(domain.EPAYMENT, "", "No payment method on file")
)

// Schedule generation errors - use domain.EINVALID
var (
	ErrInvalidFrequency = domain.Errorf(domain.EINVALID, "", "Invalid payment frequency")
	ErrInvalidAmount    = domain.Errorf(domain.EINVALID, "", "Amount must be greater than 0")
	ErrInvalidCount     = domain.Errorf(domain.EINVALID, "", "Installment count must be greater than 0")
	ErrInvalidStartDate = domain.Errorf(domain.EINVALID, "", "Start date is required")
)
