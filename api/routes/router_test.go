package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xymail/xymail-backend/internal/activation"
	"github.com/xymail/xymail-backend/internal/auth"
	"github.com/xymail/xymail-backend/internal/cardkeys"
	"github.com/xymail/xymail-backend/internal/cleanup"
	"github.com/xymail/xymail-backend/internal/emails"
	"github.com/xymail/xymail-backend/internal/messages"
	"github.com/xymail/xymail-backend/internal/roles"
	"github.com/xymail/xymail-backend/internal/settings"
	"github.com/xymail/xymail-backend/internal/tempaccounts"
	"github.com/xymail/xymail-backend/internal/users"
	"github.com/xymail/xymail-backend/pkg/auth/session"
	"github.com/xymail/xymail-backend/pkg/config"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/db/dbtest"
	"github.com/xymail/xymail-backend/pkg/enums"
	"github.com/xymail/xymail-backend/pkg/logger"
	"github.com/xymail/xymail-backend/pkg/metrics"
	"github.com/xymail/xymail-backend/pkg/security"
)

var testPassword = config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}

type memorySessions struct {
	mu     sync.Mutex
	tokens map[string]string
	seq    int
}

func (m *memorySessions) Generate(_ context.Context, accessID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	token := fmt.Sprintf("refresh-%d", m.seq)
	m.tokens[accessID] = token
	return token, nil
}

func (m *memorySessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	m.mu.Lock()
	stored, ok := m.tokens[oldAccessID]
	if !ok || stored != provided {
		m.mu.Unlock()
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(m.tokens, oldAccessID)
	m.mu.Unlock()
	accessID := session.NewAccessID()
	token, err := m.Generate(ctx, accessID)
	return accessID, token, err
}

func (m *memorySessions) HasSession(_ context.Context, accessID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[accessID]
	return ok, nil
}

func (m *memorySessions) Revoke(_ context.Context, accessID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, accessID)
	return nil
}

type harness struct {
	client  *db.Client
	handler http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.Nop()
	cfg := &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "xymail-test", ExpirationMinutes: 15},
		Inbound: config.InboundConfig{
			Secret:       "relay-secret",
			MaxBodyBytes: 1 << 20,
		},
	}

	cfgSvc, err := settings.NewService(settings.NewMemoryProvider(nil))
	must(t, err)
	sessions := &memorySessions{tokens: map[string]string{}}

	authSvc, err := auth.NewService(auth.ServiceParams{
		DB: client, Settings: cfgSvc, SessionManager: sessions,
		JWTConfig: cfg.JWT, PasswordConfig: testPassword, Logger: logg,
	})
	must(t, err)
	keys, err := cardkeys.NewService(cardkeys.ServiceParams{DB: client, Settings: cfgSvc, Logger: logg})
	must(t, err)
	activationSvc, err := activation.NewService(activation.ServiceParams{DB: client, Logger: logg})
	must(t, err)
	usersSvc, err := users.NewService(client, logg)
	must(t, err)
	cleanupSvc, err := cleanup.NewService(cleanup.ServiceParams{DB: client, Settings: cfgSvc, Logger: logg})
	must(t, err)
	emailSvc, err := emails.NewService(emails.ServiceParams{DB: client, Settings: cfgSvc, Logger: logg})
	must(t, err)
	inbox, err := messages.NewService(client, logg, nil)
	must(t, err)
	temp, err := tempaccounts.NewService(client, nil)
	must(t, err)

	reg := prometheus.NewRegistry()
	metrics.NewJobMetrics(reg).AddItems("cleanup-sweep", cleanup.PhaseExpiredEmails, 1, 0)

	handler := NewRouter(Params{
		Config:       cfg,
		Logger:       logg,
		DB:           client,
		Sessions:     sessions,
		Metrics:      reg,
		Auth:         authSvc,
		Activation:   activationSvc,
		CardKeys:     keys,
		Users:        usersSvc,
		Cleanup:      cleanupSvc,
		Settings:     cfgSvc,
		TempAccounts: temp,
		Emails:       emailSvc,
		Messages:     inbox,
	})
	return &harness{client: client, handler: handler}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
}

func (h *harness) seedUser(t *testing.T, username, password string, role enums.Role) {
	t.Helper()
	hash, err := security.HashPassword(password, testPassword)
	must(t, err)
	user, err := users.NewRepository(h.client.DB()).Create(context.Background(), users.CreateUserDTO{
		Username: &username, Name: username, PasswordHash: &hash,
	})
	must(t, err)
	must(t, roles.NewRepository(h.client.DB()).AssignByName(context.Background(), user.ID, role))
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		must(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec.Code, env
}

func (h *harness) login(t *testing.T, username, password string) string {
	t.Helper()
	status, env := h.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d %+v", username, status, env.Error)
	}
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	must(t, json.Unmarshal(env.Data, &resp))
	return resp.AccessToken
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	if status, _ := h.do(t, http.MethodGet, "/health/live", "", nil); status != http.StatusOK {
		t.Fatalf("live: %d", status)
	}
	if status, _ := h.do(t, http.MethodGet, "/health/ready", "", nil); status != http.StatusOK {
		t.Fatalf("ready: %d", status)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "xymail_cron_items_total") {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCardKeyLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "root", "emperor-pass", enums.RoleEmperor)
	adminToken := h.login(t, "root", "emperor-pass")

	status, env := h.do(t, http.MethodPost, "/cardkeys/generate", adminToken, map[string]any{
		"emailAddresses": []string{"a@x.com"},
		"expiryDays":     7,
	})
	if status != http.StatusCreated {
		t.Fatalf("generate: %d %+v", status, env.Error)
	}
	var generated cardkeys.GenerateResult
	must(t, json.Unmarshal(env.Data, &generated))
	if len(generated.CardKeys) != 1 || !cardkeys.IsCodeFormat(generated.CardKeys[0].Code) {
		t.Fatalf("unexpected generate result %+v", generated)
	}
	code := generated.CardKeys[0].Code

	status, env = h.do(t, http.MethodPost, "/activation", "", map[string]string{"code": strings.ToLower(code)})
	if status != http.StatusCreated {
		t.Fatalf("activate: %d %+v", status, env.Error)
	}
	var activated struct {
		EmailAddress string    `json:"emailAddress"`
		ExpiresAt    time.Time `json:"expiresAt"`
		AccessToken  string    `json:"accessToken"`
		RefreshToken string    `json:"refreshToken"`
	}
	must(t, json.Unmarshal(env.Data, &activated))
	if activated.EmailAddress != "a@x.com" || activated.AccessToken == "" || activated.RefreshToken == "" {
		t.Fatalf("unexpected activation payload %+v", activated)
	}

	status, env = h.do(t, http.MethodPost, "/activation", "", map[string]string{"code": code})
	if status != http.StatusConflict {
		t.Fatalf("second activation: expected 409, got %d", status)
	}

	status, env = h.do(t, http.MethodGet, "/temp-account", activated.AccessToken, nil)
	if status != http.StatusOK {
		t.Fatalf("temp-account: %d", status)
	}
	var temp tempaccounts.Status
	must(t, json.Unmarshal(env.Data, &temp))
	if !temp.IsTemp || temp.EmailAddress != "a@x.com" {
		t.Fatalf("unexpected temp status %+v", temp)
	}

	if status, _ := h.do(t, http.MethodGet, "/cardkeys", activated.AccessToken, nil); status != http.StatusForbidden {
		t.Fatalf("temp user listing card keys: expected 403, got %d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/emails", activated.AccessToken, map[string]any{"domain": "xymail.app"}); status != http.StatusForbidden {
		t.Fatalf("temp user creating email: expected 403, got %d", status)
	}

	status, env = h.do(t, http.MethodGet, "/cardkeys?status=used", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list used: %d", status)
	}
	var page struct {
		Items []cardkeys.KeyView `json:"items"`
		Total int64              `json:"total"`
	}
	must(t, json.Unmarshal(env.Data, &page))
	if page.Total != 1 {
		t.Fatalf("expected one used key, got %d", page.Total)
	}

	if status, _ := h.do(t, http.MethodDelete, "/cardkeys?id="+page.Items[0].ID.String(), adminToken, nil); status != http.StatusConflict {
		t.Fatalf("deleting used unexpired key: expected 409, got %d", status)
	}

	if status, _ := h.do(t, http.MethodGet, "/cleanup", adminToken, nil); status != http.StatusOK {
		t.Fatalf("cleanup stats: %d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/cleanup", adminToken, nil); status != http.StatusOK {
		t.Fatalf("cleanup run: %d", status)
	}
}

func TestActivationRejectsMalformedAndUnknownCodes(t *testing.T) {
	h := newHarness(t)

	if status, _ := h.do(t, http.MethodPost, "/activation", "", map[string]string{"code": ""}); status != http.StatusBadRequest {
		t.Fatalf("empty code: expected 400, got %d", status)
	}
	status, body := h.do(t, http.MethodPost, "/activation", "", map[string]string{"code": "not-a-code"})
	if status != http.StatusNotFound {
		t.Fatalf("malformed code: expected 404, got %d", status)
	}
	if body.Error == nil || body.Error.Code != "NOT_FOUND" || body.Error.Message != "card key not found" {
		t.Fatalf("malformed code: unexpected error %+v", body.Error)
	}
	if status, _ := h.do(t, http.MethodPost, "/activation", "", map[string]string{"code": "XYMAIL-AAAA-BBBB-CCCC"}); status != http.StatusNotFound {
		t.Fatalf("unknown code: expected 404, got %d", status)
	}
}

func TestPermissionsAndConfig(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "knight", "knight-pass", enums.RoleKnight)
	h.seedUser(t, "root", "emperor-pass", enums.RoleEmperor)
	knight := h.login(t, "knight", "knight-pass")
	root := h.login(t, "root", "emperor-pass")

	if status, _ := h.do(t, http.MethodGet, "/users", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous users list: expected 401, got %d", status)
	}
	if status, _ := h.do(t, http.MethodGet, "/users", knight, nil); status != http.StatusForbidden {
		t.Fatalf("knight users list: expected 403, got %d", status)
	}
	if status, _ := h.do(t, http.MethodGet, "/users?search=kni", root, nil); status != http.StatusOK {
		t.Fatalf("emperor users list: got %d", status)
	}

	if status, _ := h.do(t, http.MethodGet, "/config", knight, nil); status != http.StatusOK {
		t.Fatalf("config read: %d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/config", knight, map[string]any{"maxEmails": 5}); status != http.StatusForbidden {
		t.Fatalf("knight config write: expected 403, got %d", status)
	}
	status, env := h.do(t, http.MethodPost, "/config", root, map[string]any{"maxEmails": 5})
	if status != http.StatusOK {
		t.Fatalf("emperor config write: %d %+v", status, env.Error)
	}
	var snapshot settings.Snapshot
	must(t, json.Unmarshal(env.Data, &snapshot))
	if snapshot.MaxEmails != 5 {
		t.Fatalf("expected maxEmails=5, got %d", snapshot.MaxEmails)
	}
	if status, _ := h.do(t, http.MethodPost, "/config", root, map[string]any{"maxEmails": 0}); status != http.StatusBadRequest {
		t.Fatalf("invalid config: expected 400, got %d", status)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "alice", "alice-pass", enums.RoleCivilian)
	token := h.login(t, "alice", "alice-pass")

	if status, _ := h.do(t, http.MethodGet, "/emails", token, nil); status != http.StatusOK {
		t.Fatalf("emails before logout: %d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/auth/logout", token, nil); status != http.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	if status, _ := h.do(t, http.MethodGet, "/emails", token, nil); status != http.StatusUnauthorized {
		t.Fatalf("emails after logout: expected 401, got %d", status)
	}
}

func TestInboundRequiresSecret(t *testing.T) {
	h := newHarness(t)
	raw := "From: a@b.c\r\nTo: nobody@xymail.app\r\nSubject: hi\r\n\r\nbody\r\n"

	req := httptest.NewRequest(http.MethodPost, "/inbound", strings.NewReader(raw))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/inbound", strings.NewReader(raw))
	req.Header.Set("X-Inbound-Secret", "relay-secret")
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("inbound: expected 202, got %d (%s)", rec.Code, rec.Body.String())
	}
}
