package models

import "time"

// Donation statuses. A donation only moves forward: pending -> verified | failed.
const (
	DonationStatusPending  = "pending"
	DonationStatusVerified = "verified"
	DonationStatusFailed   = "failed"
)

// Payment statuses for the gateway-tracking companion record.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// GatewayFlutterwave is the only payment gateway in use.
const GatewayFlutterwave = "flutterwave"

// Donation represents one attempted or completed contribution.
// TxRef is the sole correlation key with the external gateway and is
// immutable once created.
type Donation struct {
	ID            int64      `json:"id"`
	TxRef         string     `json:"tx_ref"`
	TransactionID string     `json:"transaction_id,omitempty"` // assigned by the gateway on verification
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	DonationType  string     `json:"donationType"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	Message       string     `json:"message,omitempty"`
	Status        string     `json:"status"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"date"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Payment is the gateway-tracking companion to a Donation, sharing its
// reference. Both views of the transaction must agree on terminal state:
// donation verified <=> payment completed, donation failed <=> payment failed.
type Payment struct {
	ID           int64      `json:"id"`
	Reference    string     `json:"reference"` // equals the donation tx_ref
	Gateway      string     `json:"gateway"`
	Amount       float64    `json:"amount"`
	Currency     string     `json:"currency"`
	DonationType string     `json:"donation_type"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Status       string     `json:"status"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
