package donations

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/crh-church/backend/internal/flutterwave"
	"github.com/crh-church/backend/pkg/jsonstore"
)

func newTestRouter(t *testing.T, gw *mockGateway) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := jsonstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("jsonstore: %v", err)
	}
	svc := NewService(NewFileRepository(store), gw, "https://church.example.com", nil)
	h := NewHandler(svc, nil)

	r := gin.New()
	r.POST("/api/donations", h.Create)
	r.POST("/api/donations/verify", h.Verify)
	r.GET("/api/donations", h.List)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateEndpoint(t *testing.T) {
	r := newTestRouter(t, &mockGateway{configured: true})

	w := postJSON(t, r, "/api/donations", map[string]interface{}{
		"amount":   5000,
		"currency": "NGN",
		"email":    "ada@example.com",
		"name":     "Ada Obi",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			RedirectURL string `json:"redirectUrl"`
			TxRef       string `json:"txRef"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success || body.Data.RedirectURL == "" || body.Data.TxRef == "" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestCreateEndpointAcceptsStringAmount(t *testing.T) {
	r := newTestRouter(t, &mockGateway{configured: true})
	w := postJSON(t, r, "/api/donations", map[string]interface{}{
		"amount":   "2500.50",
		"currency": "USD",
		"email":    "ada@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestCreateEndpointValidation(t *testing.T) {
	r := newTestRouter(t, &mockGateway{configured: true})
	w := postJSON(t, r, "/api/donations", map[string]interface{}{
		"amount": 0,
		"email":  "ada@example.com",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateEndpointNotConfigured(t *testing.T) {
	r := newTestRouter(t, &mockGateway{configured: false})
	w := postJSON(t, r, "/api/donations", map[string]interface{}{
		"amount": 100,
		"email":  "ada@example.com",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestCreateEndpointUnauthorizedGatewayIs503(t *testing.T) {
	gw := &mockGateway{
		configured: true,
		CreateFunc: func(ctx context.Context, req flutterwave.PaymentRequest) (string, error) {
			return "", flutterwave.ErrUnauthorized
		},
	}
	r := newTestRouter(t, gw)
	w := postJSON(t, r, "/api/donations", map[string]interface{}{
		"amount": 100,
		"email":  "ada@example.com",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (never 401)", w.Code)
	}
}

func TestCreateEndpointGatewayErrorIs502(t *testing.T) {
	gw := &mockGateway{
		configured: true,
		CreateFunc: func(ctx context.Context, req flutterwave.PaymentRequest) (string, error) {
			return "", &flutterwave.Error{StatusCode: 400, Message: "declined"}
		},
	}
	r := newTestRouter(t, gw)
	w := postJSON(t, r, "/api/donations", map[string]interface{}{
		"amount": 100,
		"email":  "ada@example.com",
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestVerifyEndpointNumericAndStringID(t *testing.T) {
	for _, tid := range []interface{}{4094581, "4094581"} {
		gw := &mockGateway{configured: true}
		r := newTestRouter(t, gw)
		w := postJSON(t, r, "/api/donations/verify", map[string]interface{}{
			"transaction_id": tid,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("transaction_id %v: status = %d, body = %s", tid, w.Code, w.Body.String())
		}
	}
}

func TestVerifyEndpointMissingID(t *testing.T) {
	r := newTestRouter(t, &mockGateway{configured: true})
	w := postJSON(t, r, "/api/donations/verify", map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListEndpoint(t *testing.T) {
	r := newTestRouter(t, &mockGateway{configured: true})

	postJSON(t, r, "/api/donations", map[string]interface{}{
		"amount": 100, "email": "ada@example.com",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/donations", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Success bool              `json:"success"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 {
		t.Fatalf("got %d donations, want 1", len(body.Data))
	}
}
