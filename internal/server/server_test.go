package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/shelfspace/inventory-be/internal/challenge"
	"github.com/shelfspace/inventory-be/internal/config"
	"github.com/shelfspace/inventory-be/internal/server"
	"github.com/shelfspace/inventory-be/internal/storage/memory"
)

type apiTest struct {
	ts    *httptest.Server
	store *memory.Store
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()
	cfg := config.Config{
		Port:         "0",
		JWTSecret:    "test-secret",
		JWTIssuer:    "inventory-test",
		JWTTTL:       time.Hour,
		ChallengeTTL: 5 * time.Minute,
		TOTPIssuer:   "inventory-test",
		TOTPSkew:     2,
		CORSOrigins:  []string{"*"},
	}
	store := memory.NewStore()
	cache := challenge.NewMemory(0)
	t.Cleanup(cache.Close)

	ts := httptest.NewServer(server.NewRouter(cfg, server.Stores{
		Users:     store,
		Items:     store,
		Audits:    store,
		Challenge: cache,
	}))
	t.Cleanup(ts.Close)
	return &apiTest{ts: ts, store: store}
}

func (a *apiTest) do(t *testing.T, method, path, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, a.ts.URL+path, &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (a *apiTest) register(t *testing.T, email, password, role string) {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "A", "email": email, "password": password, "role": role,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, body %v", resp.StatusCode, body)
	}
}

func (a *apiTest) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body %v", resp.StatusCode, body)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("login returned no access_token: %v", body)
	}
	return token
}

func TestHealth(t *testing.T) {
	t.Parallel()
	a := newAPITest(t)
	resp, body := a.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	a := newAPITest(t)

	cases := []map[string]string{
		{"name": "", "email": "a@example.com", "password": "secret1", "role": "admin"},
		{"name": "A", "email": "not-an-email", "password": "secret1", "role": "admin"},
		{"name": "A", "email": "a@example.com", "password": "short", "role": "admin"},
		{"name": "A", "email": "a@example.com", "password": "secret1", "role": "owner"},
	}
	for i, payload := range cases {
		resp, _ := a.do(t, http.MethodPost, "/api/auth/register", "", payload)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("case %d: status = %d, want 400", i, resp.StatusCode)
		}
	}
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	t.Parallel()
	a := newAPITest(t)
	a.register(t, "a@example.com", "secret1", "viewer")

	resp, _ := a.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "B", "email": "a@example.com", "password": "secret2", "role": "viewer",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", resp.StatusCode)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	t.Parallel()
	a := newAPITest(t)
	a.register(t, "a@example.com", "secret1", "admin")

	resp, body := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "a@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("login status = %d, want 401", resp.StatusCode)
	}
	if _, ok := body["access_token"]; ok {
		t.Fatal("failed login must not return a token")
	}
}

func TestTwoFactorFlowOverHTTP(t *testing.T) {
	t.Parallel()
	a := newAPITest(t)
	a.register(t, "a@example.com", "secret1", "admin")
	token := a.login(t, "a@example.com", "secret1")

	// Enable the second factor and grab the shared secret.
	resp, body := a.do(t, http.MethodPost, "/api/auth/enable-2fa", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable-2fa status = %d", resp.StatusCode)
	}
	secret, _ := body["secret"].(string)
	if secret == "" {
		t.Fatalf("enable-2fa returned no secret: %v", body)
	}

	// Enabling again must return the identical secret.
	_, again := a.do(t, http.MethodPost, "/api/auth/enable-2fa", token, nil)
	if again["secret"] != secret {
		t.Fatalf("re-enable rotated secret: %v != %v", again["secret"], secret)
	}

	// Login now yields a challenge instead of a token.
	resp, body = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "a@example.com", "password": "secret1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	if body["requires_2fa"] != true {
		t.Fatalf("expected requires_2fa, got %v", body)
	}
	tempToken, _ := body["temp_token"].(string)
	if tempToken == "" {
		t.Fatal("login returned no temp_token")
	}
	if _, ok := body["access_token"]; ok {
		t.Fatal("challenged login must not return a token")
	}

	// Wrong code: 401, challenge stays live.
	resp, _ = a.do(t, http.MethodPost, "/api/auth/verify-2fa", "", map[string]string{
		"temp_token": tempToken, "code": "000000",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong code status = %d, want 401", resp.StatusCode)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode error: %v", err)
	}
	resp, body = a.do(t, http.MethodPost, "/api/auth/verify-2fa", "", map[string]string{
		"temp_token": tempToken, "code": code,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify-2fa status = %d, body %v", resp.StatusCode, body)
	}
	if access, _ := body["access_token"].(string); access == "" {
		t.Fatal("verify-2fa returned no access token")
	}

	// Replaying the consumed challenge fails even with a fresh valid code.
	code, _ = totp.GenerateCode(secret, time.Now())
	resp, _ = a.do(t, http.MethodPost, "/api/auth/verify-2fa", "", map[string]string{
		"temp_token": tempToken, "code": code,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed challenge status = %d, want 401", resp.StatusCode)
	}
}

func TestProfileAndLogout(t *testing.T) {
	t.Parallel()
	a := newAPITest(t)
	a.register(t, "a@example.com", "secret1", "manager")
	token := a.login(t, "a@example.com", "secret1")

	resp, body := a.do(t, http.MethodGet, "/api/auth/user-profile", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d", resp.StatusCode)
	}
	if body["email"] != "a@example.com" || body["role"] != "manager" {
		t.Fatalf("profile = %v", body)
	}
	// Secret fields must never serialize.
	for _, key := range []string{"password_hash", "two_factor_secret"} {
		if _, ok := body[key]; ok {
			t.Fatalf("profile leaks %s", key)
		}
	}

	resp, _ = a.do(t, http.MethodGet, "/api/auth/user-profile", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated profile status = %d, want 401", resp.StatusCode)
	}

	resp, _ = a.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
}

func TestInventoryRoleGates(t *testing.T) {
	t.Parallel()
	a := newAPITest(t)
	a.register(t, "admin@example.com", "secret1", "admin")
	a.register(t, "manager@example.com", "secret1", "manager")
	a.register(t, "viewer@example.com", "secret1", "viewer")
	adminToken := a.login(t, "admin@example.com", "secret1")
	managerToken := a.login(t, "manager@example.com", "secret1")
	viewerToken := a.login(t, "viewer@example.com", "secret1")

	item := map[string]any{"name": "Widget", "description": "test widget", "quantity": 3, "price": "9.99"}

	// Viewer cannot create.
	resp, _ := a.do(t, http.MethodPost, "/api/inventory/", viewerToken, item)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer create status = %d, want 403", resp.StatusCode)
	}

	// Manager can create.
	resp, created := a.do(t, http.MethodPost, "/api/inventory/", managerToken, item)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("manager create status = %d, body %v", resp.StatusCode, created)
	}
	id := fmt.Sprintf("%v", created["id"])

	// Everyone authenticated can read.
	resp, _ = a.do(t, http.MethodGet, "/api/inventory/"+id, viewerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("viewer read status = %d", resp.StatusCode)
	}
	resp, list := a.do(t, http.MethodGet, "/api/inventory/?search=widget", viewerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if total, _ := list["total"].(float64); total != 1 {
		t.Fatalf("list total = %v, want 1", list["total"])
	}

	// Unauthenticated read is rejected.
	resp, _ = a.do(t, http.MethodGet, "/api/inventory/", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous list status = %d, want 401", resp.StatusCode)
	}

	// Manager can update but not delete.
	resp, _ = a.do(t, http.MethodPut, "/api/inventory/"+id, managerToken, map[string]any{"quantity": 5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("manager update status = %d", resp.StatusCode)
	}
	resp, _ = a.do(t, http.MethodDelete, "/api/inventory/"+id, managerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("manager delete status = %d, want 403", resp.StatusCode)
	}

	// Admin can delete.
	resp, _ = a.do(t, http.MethodDelete, "/api/inventory/"+id, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin delete status = %d", resp.StatusCode)
	}
	resp, _ = a.do(t, http.MethodGet, "/api/inventory/"+id, adminToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted item status = %d, want 404", resp.StatusCode)
	}
}

func TestInventoryValidation(t *testing.T) {
	t.Parallel()
	a := newAPITest(t)
	a.register(t, "admin@example.com", "secret1", "admin")
	token := a.login(t, "admin@example.com", "secret1")

	cases := []map[string]any{
		{"name": "", "quantity": 1, "price": "1.00"},
		{"name": "Widget", "quantity": -1, "price": "1.00"},
		{"name": "Widget", "quantity": 1, "price": "-1.00"},
		{"name": "Widget"},
	}
	for i, payload := range cases {
		resp, _ := a.do(t, http.MethodPost, "/api/inventory/", token, payload)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("case %d: status = %d, want 422", i, resp.StatusCode)
		}
	}
}

func TestUserAdminEndpoints(t *testing.T) {
	t.Parallel()
	a := newAPITest(t)
	a.register(t, "admin@example.com", "secret1", "admin")
	a.register(t, "viewer@example.com", "secret1", "viewer")
	adminToken := a.login(t, "admin@example.com", "secret1")
	viewerToken := a.login(t, "viewer@example.com", "secret1")

	// Non-admins are locked out entirely.
	resp, _ := a.do(t, http.MethodGet, "/api/users/", viewerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer list users status = %d, want 403", resp.StatusCode)
	}

	resp, body := a.do(t, http.MethodGet, "/api/users/", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list users status = %d, body %v", resp.StatusCode, body)
	}

	// Create, promote, then delete a user.
	resp, created := a.do(t, http.MethodPost, "/api/users/", adminToken, map[string]string{
		"name": "C", "email": "c@example.com", "password": "secret1", "role": "viewer",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user status = %d, body %v", resp.StatusCode, created)
	}
	user, _ := created["user"].(map[string]any)
	id := fmt.Sprintf("%v", user["id"])

	resp, updated := a.do(t, http.MethodPut, "/api/users/"+id, adminToken, map[string]string{"role": "manager"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update user status = %d, body %v", resp.StatusCode, updated)
	}

	resp, _ = a.do(t, http.MethodDelete, "/api/users/"+id, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete user status = %d", resp.StatusCode)
	}

	// A soft-deleted user can no longer log in.
	resp, _ = a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "c@example.com", "password": "secret1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted user login status = %d, want 401", resp.StatusCode)
	}
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	t.Parallel()
	a := newAPITest(t)
	a.register(t, "admin@example.com", "secret1", "admin")
	token := a.login(t, "admin@example.com", "secret1")

	resp, body := a.do(t, http.MethodGet, "/api/auth/user-profile", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile status = %d", resp.StatusCode)
	}
	id := fmt.Sprintf("%v", body["id"])

	resp, _ = a.do(t, http.MethodDelete, "/api/users/"+id, token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self-delete status = %d, want 400", resp.StatusCode)
	}
}
