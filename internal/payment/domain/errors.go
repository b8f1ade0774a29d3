package domain

import "errors"

var (
	ErrInvalidAddress      = errors.New("invalid_address")
	ErrUnknownPaymentType  = errors.New("unknown_payment_type")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrSubmissionFailed    = errors.New("submission_failed")
	ErrVerificationTimeout = errors.New("verification_timeout")
	ErrTransactionReverted = errors.New("transaction_reverted")
	ErrDuplicatePayment    = errors.New("duplicate_payment")
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
)
