package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/crh-church/backend/internal/models"
	"github.com/crh-church/backend/pkg/jsonstore"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := jsonstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("jsonstore: %v", err)
	}
	h := NewHandler(NewFileRepository(store), NewJWTService("test-secret", 1), nil)

	r := gin.New()
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(t, r, "/api/auth/register", map[string]string{
		"email":    "ada@example.com",
		"password": "secret123",
		"name":     "Ada Obi",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", w.Code, w.Body.String())
	}
	var reg struct {
		Data TokenResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reg.Data.Token == "" {
		t.Fatal("no token in register response")
	}
	if reg.Data.User.Role != models.RoleMember {
		t.Fatalf("role = %q, want member", reg.Data.User.Role)
	}

	w = postJSON(t, r, "/api/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d", w.Code)
	}

	w = postJSON(t, r, "/api/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", w.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	r := newTestRouter(t)

	body := map[string]string{
		"email":    "ada@example.com",
		"password": "secret123",
		"name":     "Ada Obi",
	}
	if w := postJSON(t, r, "/api/auth/register", body); w.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", w.Code)
	}
	if w := postJSON(t, r, "/api/auth/register", body); w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register status = %d, want 400", w.Code)
	}
}

func TestAdminRoleAssignment(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(t, r, "/api/auth/register", map[string]string{
		"email":    "admin@church.org",
		"password": "secret123",
		"name":     "Site Admin",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d", w.Code)
	}
	var reg struct {
		Data TokenResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reg.Data.User.Role != models.RoleAdmin {
		t.Fatalf("role = %q, want admin", reg.Data.User.Role)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	token, err := svc.Generate(uuid.New(), "ada@example.com", "member")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Email != "ada@example.com" || claims.Role != "member" {
		t.Fatalf("claims = %+v", claims)
	}

	other := NewJWTService("different-secret", 1)
	if _, err := other.Validate(token); err == nil {
		t.Fatal("token validated under wrong secret")
	}
}
