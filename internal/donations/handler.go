package donations

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crh-church/backend/internal/flutterwave"
	"github.com/crh-church/backend/pkg/response"
)

// Handler exposes donation HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a donations handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Amount accepts either a JSON number or a numeric string, since browser
// form clients send both.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.New("amount must be a number")
	}
	*a = Amount(f)
	return nil
}

type createRequest struct {
	Amount       Amount `json:"amount"`
	Currency     string `json:"currency"`
	DonationType string `json:"donationType"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Message      string `json:"message"`
}

// transactionID accepts either a JSON number or a string; the gateway
// assigns numeric ids but redirect query parameters arrive as strings.
type transactionID string

// UnmarshalJSON implements json.Unmarshaler.
func (t *transactionID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" {
		s = ""
	}
	*t = transactionID(strings.TrimSpace(s))
	return nil
}

type verifyRequest struct {
	TransactionID transactionID `json:"transaction_id"`
	TxRef         string        `json:"tx_ref"`
}

// Create handles POST /api/donations.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.service.Create(c.Request.Context(), CreateParams{
		Amount:       float64(req.Amount),
		Currency:     req.Currency,
		DonationType: req.DonationType,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Message:      req.Message,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, result)
}

// Verify handles POST /api/donations/verify.
func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	result, err := h.service.Verify(c.Request.Context(), string(req.TransactionID), strings.TrimSpace(req.TxRef))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, result)
}

// List handles GET /api/donations (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list donations", zap.Error(err))
		response.Internal(c, "could not fetch donations")
		return
	}
	response.OK(c, list)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var valErr *ValidationError
	var gwErr *flutterwave.Error
	switch {
	case errors.As(err, &valErr):
		response.BadRequest(c, valErr.Message)
	case errors.Is(err, ErrNotConfigured), errors.Is(err, flutterwave.ErrNotConfigured):
		response.ServiceUnavailable(c, "Payment service not configured. Please contact the administrator.")
	case errors.Is(err, flutterwave.ErrUnauthorized):
		// Never 401: the browser must not confuse gateway credentials with
		// an expired user session.
		response.ServiceUnavailable(c, "Payment service configuration error. Please try again later.")
	case errors.As(err, &gwErr):
		response.BadGateway(c, gwErr.Message)
	default:
		h.logger.Error("donation request failed", zap.Error(err))
		response.Internal(c, "something went wrong")
	}
}
