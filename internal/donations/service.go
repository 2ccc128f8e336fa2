package donations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crh-church/backend/internal/flutterwave"
	"github.com/crh-church/backend/internal/models"
)

// AllowedCurrencies is the supported donation currency set.
var AllowedCurrencies = []string{"NGN", "USD", "GBP", "EUR", "GHS", "ZAR", "KES"}

// zeroDecimalCurrencies are charged in whole units, no fractional part.
var zeroDecimalCurrencies = map[string]bool{"NGN": true}

// ErrNotConfigured means the gateway secret key is absent; donation
// endpoints must report 503 before validating or persisting anything.
var ErrNotConfigured = errors.New("payment service not configured")

// ValidationError reports bad donor input (HTTP 400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Gateway is the hosted-checkout client the service depends on.
type Gateway interface {
	Configured() bool
	CreatePayment(ctx context.Context, req flutterwave.PaymentRequest) (string, error)
	VerifyTransaction(ctx context.Context, transactionID string) (*flutterwave.Transaction, error)
}

// Service orchestrates the donation payment lifecycle: pending record,
// hosted checkout session, post-redirect verification and reconciliation.
type Service struct {
	repo           Repository
	gateway        Gateway
	frontendOrigin string
	logger         *zap.Logger
}

// NewService creates a donation service.
func NewService(repo Repository, gateway Gateway, frontendOrigin string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, gateway: gateway, frontendOrigin: frontendOrigin, logger: logger}
}

// CreateParams is the donor's intent.
type CreateParams struct {
	Amount       float64
	Currency     string
	DonationType string
	Name         string
	Email        string
	Phone        string
	Message      string
}

// CreateResult carries the hosted checkout link the donor is redirected to.
type CreateResult struct {
	RedirectURL string `json:"redirectUrl"`
	TxRef       string `json:"txRef"`
}

// Create validates the intent, persists a pending Donation and companion
// Payment, then asks the gateway for a checkout link. A gateway failure
// leaves the pending records in place; an abandoned checkout legitimately
// leaves a dangling pending donation.
func (s *Service) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	if !s.gateway.Configured() {
		return nil, ErrNotConfigured
	}

	if math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0) || p.Amount <= 0 {
		return nil, &ValidationError{Message: "Invalid amount"}
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "NGN"
	}
	if !currencyAllowed(currency) {
		return nil, &ValidationError{
			Message: "Currency not supported. Use one of: " + strings.Join(AllowedCurrencies, ", "),
		}
	}
	if !strings.Contains(p.Email, "@") {
		return nil, &ValidationError{Message: "Valid email is required"}
	}

	amount := NormalizeAmount(p.Amount, currency)
	txRef := NewTxRef()

	donationType := strings.TrimSpace(p.DonationType)
	if donationType == "" {
		donationType = "general"
	}

	d := &models.Donation{
		TxRef:        txRef,
		Amount:       amount,
		Currency:     currency,
		DonationType: donationType,
		Name:         truncate(strings.TrimSpace(p.Name), 255),
		Email:        truncate(strings.ToLower(strings.TrimSpace(p.Email)), 255),
		Phone:        truncate(strings.TrimSpace(p.Phone), 50),
		Message:      truncate(strings.TrimSpace(p.Message), 2000),
		Status:       models.DonationStatusPending,
	}
	if err := s.repo.CreateDonation(ctx, d); err != nil {
		return nil, fmt.Errorf("persist donation: %w", err)
	}
	payment := &models.Payment{
		Reference:    txRef,
		Gateway:      models.GatewayFlutterwave,
		Amount:       amount,
		Currency:     currency,
		DonationType: donationType,
		Name:         d.Name,
		Email:        d.Email,
		Status:       models.PaymentStatusPending,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("persist payment: %w", err)
	}

	donorName := d.Name
	if donorName == "" {
		donorName = "Donor"
	}
	link, err := s.gateway.CreatePayment(ctx, flutterwave.PaymentRequest{
		TxRef:       txRef,
		Amount:      amount,
		Currency:    currency,
		RedirectURL: fmt.Sprintf("%s/donate/return?tx_ref=%s", s.frontendOrigin, url.QueryEscape(txRef)),
		Customer: flutterwave.Customer{
			Email:       d.Email,
			Name:        donorName,
			PhoneNumber: d.Phone,
		},
		Customizations: flutterwave.Customizations{
			Title:       "Christ's Reformation House - Donation",
			Description: donationType,
		},
		Meta: map[string]string{"donation_type": donationType},
	})
	if err != nil {
		s.logger.Warn("checkout session creation failed",
			zap.String("tx_ref", txRef), zap.Error(err))
		return nil, err
	}

	s.logger.Info("donation checkout created",
		zap.String("tx_ref", txRef),
		zap.Float64("amount", amount),
		zap.String("currency", currency),
	)
	return &CreateResult{RedirectURL: link, TxRef: txRef}, nil
}

// VerifyResult reports the reconciled verdict of a checkout.
type VerifyResult struct {
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// Verify asks the gateway for the authoritative transaction outcome and
// reconciles the local Donation and Payment records to match. A legitimate
// "payment not successful" verdict is a normal result, not an error; only
// transport and configuration failures return an error. Verify is
// idempotent: re-verifying a terminal transaction re-applies the same state.
func (s *Service) Verify(ctx context.Context, transactionID, txRef string) (*VerifyResult, error) {
	if !s.gateway.Configured() {
		return nil, ErrNotConfigured
	}
	if transactionID == "" {
		return nil, &ValidationError{Message: "Missing transaction_id"}
	}

	tx, err := s.gateway.VerifyTransaction(ctx, transactionID)
	var gwErr *flutterwave.Error
	if errors.As(err, &gwErr) {
		// The gateway answered but has no successful transaction under this
		// id. Reconcile to failed when we can correlate it locally.
		s.reconcileFailed(ctx, txRef, transactionID)
		return &VerifyResult{Verified: false, Error: gwErr.Message}, nil
	}
	if err != nil {
		return nil, err
	}

	ref := txRef
	if ref == "" {
		ref = tx.TxRef
	}

	if tx.Status != "successful" {
		s.reconcileFailed(ctx, ref, transactionID)
		return &VerifyResult{Verified: false, Error: "Payment was not successful"}, nil
	}

	if _, err := s.repo.GetDonationByRef(ctx, ref); err != nil {
		// The gateway verdict stands even without a local record; callers
		// still get a truthful result.
		s.logger.Warn("verified transaction has no local donation record",
			zap.String("tx_ref", ref), zap.String("transaction_id", transactionID))
	}
	if err := s.repo.MarkDonationVerified(ctx, ref, transactionID); err != nil {
		return nil, fmt.Errorf("mark donation verified: %w", err)
	}
	if err := s.repo.MarkPaymentCompleted(ctx, ref); err != nil {
		return nil, fmt.Errorf("mark payment completed: %w", err)
	}

	s.logger.Info("donation verified",
		zap.String("tx_ref", ref), zap.String("transaction_id", transactionID))
	return &VerifyResult{Verified: true}, nil
}

// List returns all donations for the admin dashboard.
func (s *Service) List(ctx context.Context) ([]models.Donation, error) {
	return s.repo.ListDonations(ctx)
}

func (s *Service) reconcileFailed(ctx context.Context, txRef, transactionID string) {
	if txRef == "" {
		return
	}
	if err := s.repo.MarkDonationFailed(ctx, txRef, transactionID); err != nil {
		s.logger.Error("mark donation failed", zap.String("tx_ref", txRef), zap.Error(err))
	}
	if err := s.repo.MarkPaymentFailed(ctx, txRef); err != nil {
		s.logger.Error("mark payment failed", zap.String("tx_ref", txRef), zap.Error(err))
	}
}

// NewTxRef generates a transaction reference: prefix, millisecond timestamp
// and 4 random bytes in hex. The reference is the sole correlation key
// between local records and the gateway session.
func NewTxRef() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("crh-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}

// NormalizeAmount rounds to whole units for zero-decimal currencies and to
// two decimal places otherwise.
func NormalizeAmount(amount float64, currency string) float64 {
	if zeroDecimalCurrencies[currency] {
		return math.Round(amount)
	}
	return math.Round(amount*100) / 100
}

func currencyAllowed(code string) bool {
	for _, c := range AllowedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
