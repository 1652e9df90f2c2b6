// Package transfer validates and submits token transfers, one at a time.
package transfer

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/vietddude/breadwatch/internal/core/domain"
	"github.com/vietddude/breadwatch/internal/metrics"
)

// Chain submits transfers.
type Chain interface {
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash) error
}

// BalanceSource reports the last known balance of the connected identity.
type BalanceSource interface {
	Balance() (*big.Int, bool)
}

// IdentitySource returns the connected identity.
type IdentitySource interface {
	Identity() domain.Identity
}

// Form is the user-entered transfer and the in-flight flag.
type Form struct {
	Recipient  string `json:"recipient"`
	Amount     string `json:"amount"`
	Submitting bool   `json:"submitting"`
}

// Submitter owns the transfer form.
type Submitter struct {
	chain    Chain
	balance  BalanceSource
	identity IdentitySource
	notifier Notifier
	decimals int32
	log      *slog.Logger

	mu   sync.Mutex
	form Form
}

// NewSubmitter creates a submitter for a token with the given decimals.
func NewSubmitter(chain Chain, balance BalanceSource, identity IdentitySource, notifier Notifier, decimals int32) *Submitter {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Submitter{
		chain:    chain,
		balance:  balance,
		identity: identity,
		notifier: notifier,
		decimals: decimals,
		log:      slog.Default().With("component", "transfer"),
	}
}

// SetRecipient sets the recipient input.
func (s *Submitter) SetRecipient(v string) {
	s.mu.Lock()
	s.form.Recipient = v
	s.mu.Unlock()
}

// SetAmount sets the decimal amount input.
func (s *Submitter) SetAmount(v string) {
	s.mu.Lock()
	s.form.Amount = v
	s.mu.Unlock()
}

// Form returns the current form.
func (s *Submitter) Form() Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Submit runs one transfer attempt with the current form. Inputs are cleared
// only on success; the submitting flag is cleared on every path.
func (s *Submitter) Submit(ctx context.Context) (common.Hash, error) {
	requestID := uuid.NewString()
	log := s.log.With("request", requestID)

	s.mu.Lock()
	if s.form.Submitting {
		s.mu.Unlock()
		return common.Hash{}, ErrAlreadySubmitting
	}
	recipient := strings.TrimSpace(s.form.Recipient)
	amount := strings.TrimSpace(s.form.Amount)
	id := s.identity.Identity()

	if recipient == "" || amount == "" || !id.Connected() {
		s.mu.Unlock()
		return common.Hash{}, s.reject(requestID, ErrMissingFields)
	}
	s.form.Submitting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.form.Submitting = false
		s.mu.Unlock()
	}()

	to, err := domain.ParseAddress(recipient)
	if err != nil {
		return common.Hash{}, s.reject(requestID, ErrInvalidRecipient)
	}
	minor, err := domain.ParseUnits(amount, s.decimals)
	if err != nil {
		return common.Hash{}, s.reject(requestID, ErrInvalidAmount)
	}

	if balance, known := s.balance.Balance(); known && minor.Cmp(balance) > 0 {
		log.Info("Transfer rejected", "amount", minor.String(), "balance", balance.String())
		return common.Hash{}, s.reject(requestID, ErrInsufficientBalance)
	}

	log.Info("Submitting transfer", "from", id.Address.Hex(), "to", to.Hex(), "amount", minor.String())

	txHash, err := s.chain.Transfer(ctx, id.Address, to, minor)
	if err != nil {
		return common.Hash{}, s.fail(requestID, &SubmissionError{Reason: err.Error(), Err: err})
	}
	if err := s.chain.WaitMined(ctx, txHash); err != nil {
		return txHash, s.fail(requestID, &SubmissionError{Reason: err.Error(), TxHash: txHash, Err: err})
	}

	s.mu.Lock()
	s.form.Recipient = ""
	s.form.Amount = ""
	s.mu.Unlock()

	metrics.TransfersSubmitted.WithLabelValues("success").Inc()
	log.Info("Transfer confirmed", "tx", txHash.Hex())
	s.notifier.Notify(Notification{
		Level:     LevelSuccess,
		Message:   "Transfer successful!",
		TxHash:    txHash.Hex(),
		RequestID: requestID,
	})
	return txHash, nil
}

func (s *Submitter) reject(requestID string, err error) error {
	metrics.TransfersSubmitted.WithLabelValues("rejected").Inc()
	s.notifier.Notify(Notification{Level: LevelError, Message: userMessage(err), RequestID: requestID})
	return err
}

func (s *Submitter) fail(requestID string, err *SubmissionError) error {
	metrics.TransfersSubmitted.WithLabelValues("failed").Inc()
	s.log.Warn("Transfer failed", "request", requestID, "error", err.Err)

	n := Notification{Level: LevelError, Message: userMessage(err), RequestID: requestID}
	if err.TxHash != (common.Hash{}) {
		n.TxHash = err.TxHash.Hex()
	}
	s.notifier.Notify(n)
	return err
}

func userMessage(err error) string {
	var subErr *SubmissionError
	switch {
	case errors.As(err, &subErr):
		return "Transfer failed: " + subErr.Reason
	case errors.Is(err, ErrMissingFields):
		return "Please fill in all fields"
	case errors.Is(err, ErrInsufficientBalance):
		return "Insufficient balance"
	case errors.Is(err, ErrInvalidRecipient):
		return "Invalid recipient address"
	case errors.Is(err, ErrInvalidAmount):
		return "Invalid amount"
	default:
		return err.Error()
	}
}
