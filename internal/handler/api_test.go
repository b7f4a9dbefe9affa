package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/dispatcher"
	"github.com/obiwankenobi699/HoneyPot/internal/extractor"
	"github.com/obiwankenobi699/HoneyPot/internal/models"
	"github.com/obiwankenobi699/HoneyPot/internal/repository"
	"github.com/obiwankenobi699/HoneyPot/internal/service"
	"github.com/obiwankenobi699/HoneyPot/internal/session"
	"github.com/obiwankenobi699/HoneyPot/internal/tracker"
)

const testAPIKey = "test-key"

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	store := session.NewMemoryStore(logger)
	tr := tracker.New(nil, 0)
	hp := service.NewHoneypot(service.Deps{
		Store:      store,
		Extractor:  extractor.New(extractor.Config{}),
		Tracker:    tr,
		Dispatcher: dispatcher.New(store, tr, nil, logger),
	}, logger)

	hash, err := service.HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	auth := service.NewAdminAuth(service.AdminConfig{Username: "ops", PasswordHash: hash, JWTSecret: "secret", TokenTTL: time.Hour}, logger)

	log := repository.NewMemoryCallbackLog(10)
	log.RecordDelivery(context.Background(), models.DeliveryRecord{ID: "d1", SessionID: "s1", Status: models.DeliveryDelivered})

	r := gin.New()
	NewHandler(hp, log, auth, testAPIKey, logger).RegisterRoutes(r)
	return r
}

func do(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var keyHeader = map[string]string{"x-api-key": testAPIKey}

func TestHandleMessage(t *testing.T) {
	r := newRouter(t)
	body := `{
		"sessionId": "abc",
		"message": {"sender": "scammer", "text": "Please send money to 9876543210@upi or call 9876543210, IFSC HDFC0001234", "timestamp": 1770000000000},
		"conversationHistory": []
	}`

	w := do(r, http.MethodPost, "/api/v1/honeypot/message", body, keyHeader)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var resp models.MessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.Status != "success" || resp.Reply == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
	intel := resp.ExtractedIntelligence
	if intel == nil || len(intel.UPIIDs) != 1 || intel.UPIIDs[0] != "9876543210@upi" {
		t.Errorf("upiIds = %+v", intel)
	}
	if len(intel.PhoneNumbers) != 1 || intel.PhoneNumbers[0] != "9876543210" {
		t.Errorf("phoneNumbers = %v", intel.PhoneNumbers)
	}
	if resp.EngagementMetrics == nil || resp.EngagementMetrics.TotalMessagesExchanged != 1 {
		t.Errorf("metrics = %+v", resp.EngagementMetrics)
	}
}

func TestHandleMessage_Errors(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name    string
		body    string
		headers map[string]string
		want    int
	}{
		{"missing api key", `{}`, nil, http.StatusUnauthorized},
		{"malformed json", `{"sessionId":`, keyHeader, http.StatusBadRequest},
		{"boolean timestamp", `{"sessionId":"a","message":{"sender":"user","text":"hi","timestamp":true}}`, keyHeader, http.StatusBadRequest},
		{"missing session id", `{"message":{"sender":"user","text":"hi","timestamp":1}}`, keyHeader, http.StatusBadRequest},
		{"unknown sender", `{"sessionId":"a","message":{"sender":"bot","text":"hi","timestamp":1}}`, keyHeader, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/honeypot/message", tt.body, tt.headers)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestAnalyzeAndGetSession(t *testing.T) {
	r := newRouter(t)

	for i, text := range []string{"hello", "are you there"} {
		body := `{"sessionId":"s9","message":{"sender":"user","text":"` + text + `","timestamp":"2026-01-01T10:0` + string(rune('0'+i)) + `:00Z"}}`
		w := do(r, http.MethodPost, "/api/v1/honeypot/analyze", body, keyHeader)
		if w.Code != http.StatusOK {
			t.Fatalf("analyze status = %d body = %s", w.Code, w.Body.String())
		}
	}

	w := do(r, http.MethodGet, "/api/v1/sessions/s9", "", keyHeader)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var resp models.DetailedMessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if resp.MessageCount != 2 || resp.ConversationPhase != "engaging" || !resp.ShouldContinue {
		t.Errorf("unexpected session view: %+v", resp)
	}

	if w := do(r, http.MethodGet, "/api/v1/sessions/unknown", "", keyHeader); w.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d", w.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	r := newRouter(t)

	if w := do(r, http.MethodGet, "/api/v1/admin/sessions", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/admin/login", `{"username":"ops","password":"bad"}`, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", w.Code)
	}

	w := do(r, http.MethodPost, "/api/v1/admin/login", `{"username":"ops","password":"pw"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body = %s", w.Code, w.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("no token: %v %s", err, w.Body.String())
	}
	bearer := map[string]string{"Authorization": "Bearer " + login.Token}

	w = do(r, http.MethodGet, "/api/v1/admin/callbacks", "", bearer)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"d1"`) {
		t.Errorf("callbacks status = %d body = %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/admin/sessions", "", bearer)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":0`) {
		t.Errorf("sessions status = %d body = %s", w.Code, w.Body.String())
	}

	if w := do(r, http.MethodGet, "/api/v1/admin/sessions", "", map[string]string{"Authorization": "Bearer junk"}); w.Code != http.StatusUnauthorized {
		t.Errorf("junk token status = %d", w.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	r := newRouter(t)
	if w := do(r, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}
