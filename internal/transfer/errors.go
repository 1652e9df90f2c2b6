package transfer

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrMissingFields       = errors.New("please fill in all fields")
	ErrInvalidRecipient    = errors.New("invalid recipient address")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadySubmitting   = errors.New("a transfer is already being submitted")
)

// SubmissionError is a transfer the network rejected or that failed on chain.
type SubmissionError struct {
	Reason string
	TxHash common.Hash
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transfer failed: %s", e.Reason)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was raised before anything was submitted.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrInvalidRecipient) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance)
}
