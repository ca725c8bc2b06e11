package callable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-devices/core"
	glog "github.com/goliatone/go-logger/glog"
)

const testSecret = "test-secret"

type harness struct {
	server   *httptest.Server
	store    *core.MemoryStore
	verifier *TokenVerifier
	srv      *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := core.NewMemoryStore()
	svc, err := core.NewService(core.DefaultConfig(), core.WithStore(store), core.WithLogger(glog.Nop()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	registry, err := NewDefaultRegistry(svc)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	verifier, err := NewTokenVerifier(testSecret, "devices-test", "devices-app")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	srv, err := NewServer(ServerConfig{}, registry, verifier)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	server := httptest.NewServer(srv.Handler())
	t.Cleanup(server.Close)
	return &harness{server: server, store: store, verifier: verifier, srv: srv}
}

func (h *harness) token(t *testing.T, uid string, name string) string {
	t.Helper()
	token, err := h.verifier.Issue(uid, name, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (h *harness) call(t *testing.T, function string, token string, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/"+function, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("call %s: %v", function, err)
	}
	defer resp.Body.Close()
	decoded := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode %s response: %v", function, err)
	}
	return resp.StatusCode, decoded
}

func requireCallableError(t *testing.T, code int, body map[string]any, wantCode int, wantStatus string) {
	t.Helper()
	if code != wantCode {
		t.Fatalf("expected http %d, got %d (%v)", wantCode, code, body)
	}
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	if envelope["status"] != wantStatus {
		t.Fatalf("expected status %s, got %v", wantStatus, envelope["status"])
	}
	if message, _ := envelope["message"].(string); strings.TrimSpace(message) == "" {
		t.Fatalf("expected error message, got %v", envelope)
	}
}

func TestCallable_ClaimScenarioAndReplay(t *testing.T) {
	h := newHarness(t)
	if _, err := h.store.CreateDevice(context.Background(), core.CreateDeviceInput{ID: "dev-42", ClaimCode: "ABC123"}); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	token := h.token(t, "user-7", "Ada")

	code, body := h.call(t, FunctionClaimDevice, token, `{"data":{"deviceId":"dev-42","claimCode":"ABC123"}}`)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", code, body)
	}
	result, ok := body["result"].(map[string]any)
	if !ok || result["ok"] != true || result["deviceId"] != "dev-42" {
		t.Fatalf("unexpected claim result: %v", body)
	}

	device, err := h.store.GetDevice(context.Background(), "dev-42")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if device.OwnerID != "user-7" || device.ClaimCode != "" {
		t.Fatalf("unexpected device after claim: %#v", device)
	}
	user, err := h.store.GetUser(context.Background(), "user-7")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.CurrentDeviceID != "dev-42" {
		t.Fatalf("expected current device dev-42, got %q", user.CurrentDeviceID)
	}

	code, body = h.call(t, FunctionClaimDevice, token, `{"data":{"deviceId":"dev-42","claimCode":"ABC123"}}`)
	requireCallableError(t, code, body, http.StatusForbidden, StatusPermissionDenied)
}

func TestCallable_ErrorStatuses(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, "user-7", "")

	code, body := h.call(t, FunctionClaimDevice, "", `{"data":{"deviceId":"dev-42","claimCode":"ABC123"}}`)
	requireCallableError(t, code, body, http.StatusUnauthorized, StatusUnauthenticated)

	code, body = h.call(t, FunctionClaimDevice, token, `{"data":{"deviceId":"","claimCode":"ABC123"}}`)
	requireCallableError(t, code, body, http.StatusBadRequest, StatusInvalidArgument)

	code, body = h.call(t, FunctionClaimDevice, token, `{"data":{}}`)
	requireCallableError(t, code, body, http.StatusBadRequest, StatusInvalidArgument)

	code, body = h.call(t, FunctionClaimDevice, token, `{"data":{"deviceId":"missing","claimCode":"ABC123"}}`)
	requireCallableError(t, code, body, http.StatusNotFound, StatusNotFound)

	code, body = h.call(t, FunctionClaimDevice, token, `{"data":`)
	requireCallableError(t, code, body, http.StatusBadRequest, StatusInvalidArgument)

	code, body = h.call(t, FunctionClaimDevice, token, `{"data":{"deviceId":42}}`)
	requireCallableError(t, code, body, http.StatusBadRequest, StatusInvalidArgument)

	code, body = h.call(t, "deleteEverything", token, `{"data":{}}`)
	requireCallableError(t, code, body, http.StatusNotFound, StatusNotFound)
}

func TestCallable_MissingIdentityWinsOverPayload(t *testing.T) {
	h := newHarness(t)
	for _, tc := range []struct {
		function string
		body     string
	}{
		{FunctionClaimDevice, `{"data":{"deviceId":42,"claimCode":"ABC123"}}`},
		{FunctionClaimDevice, `{"data":{"deviceId":42}}`},
		{FunctionClaimDevice, `{"data":"x"}`},
		{FunctionClaimDevice, `{"data":{}}`},
		{FunctionClaimDevice, `{"data":`},
		{FunctionClaimDevice, `not json`},
		{FunctionReleaseDevice, `{"data":{"deviceId":42}}`},
		{FunctionReleaseDevice, `{"data":"x"}`},
		{FunctionReleaseDevice, `{"data":`},
		{FunctionListMyDevices, `{"data":`},
	} {
		code, body := h.call(t, tc.function, "", tc.body)
		requireCallableError(t, code, body, http.StatusUnauthorized, StatusUnauthenticated)
	}
}

func TestCallable_PaddedClaimInputRefused(t *testing.T) {
	h := newHarness(t)
	if _, err := h.store.CreateDevice(context.Background(), core.CreateDeviceInput{ID: "dev-42", ClaimCode: "ABC123"}); err != nil {
		t.Fatalf("seed device: %v", err)
	}
	token := h.token(t, "user-7", "")

	code, body := h.call(t, FunctionClaimDevice, token, `{"data":{"deviceId":"dev-42","claimCode":"ABC123  "}}`)
	requireCallableError(t, code, body, http.StatusForbidden, StatusPermissionDenied)

	code, body = h.call(t, FunctionClaimDevice, token, `{"data":{"deviceId":" dev-42 ","claimCode":"ABC123"}}`)
	requireCallableError(t, code, body, http.StatusNotFound, StatusNotFound)

	device, err := h.store.GetDevice(context.Background(), "dev-42")
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if device.Claimed() {
		t.Fatalf("expected device to stay unclaimed, got owner %q", device.OwnerID)
	}
}

func TestCallable_InvalidTokenRejectedBeforeHandler(t *testing.T) {
	h := newHarness(t)
	other, err := NewTokenVerifier("other-secret", "devices-test", "devices-app")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	forged, err := other.Issue("user-7", "", time.Hour)
	if err != nil {
		t.Fatalf("issue forged token: %v", err)
	}
	code, body := h.call(t, FunctionClaimDevice, forged, `{"data":{"deviceId":"dev-42","claimCode":"ABC123"}}`)
	requireCallableError(t, code, body, http.StatusUnauthorized, StatusUnauthenticated)

	req, _ := http.NewRequest(http.MethodPost, h.server.URL+"/"+FunctionClaimDevice, strings.NewReader(`{"data":{}}`))
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("call with basic auth: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non bearer scheme, got %d", resp.StatusCode)
	}
}

func TestCallable_ReleaseAndListMyDevices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, id := range []string{"dev-1", "dev-2"} {
		if _, err := h.store.CreateDevice(ctx, core.CreateDeviceInput{ID: id, Label: "Lamp " + id, ClaimCode: "CODE-" + id}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	token := h.token(t, "user-1", "Grace")
	for _, id := range []string{"dev-1", "dev-2"} {
		code, body := h.call(t, FunctionClaimDevice, token, `{"data":{"deviceId":"`+id+`","claimCode":"CODE-`+id+`"}}`)
		if code != http.StatusOK {
			t.Fatalf("claim %s: %d %v", id, code, body)
		}
	}

	code, body := h.call(t, FunctionListMyDevices, token, `{"data":null}`)
	if code != http.StatusOK {
		t.Fatalf("list devices: %d %v", code, body)
	}
	devices := body["result"].(map[string]any)["devices"].([]any)
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %v", devices)
	}
	first := devices[0].(map[string]any)
	if _, leaked := first["claimCode"]; leaked {
		t.Fatalf("claim code must not be exposed: %v", first)
	}

	intruder := h.token(t, "user-2", "")
	code, body = h.call(t, FunctionReleaseDevice, intruder, `{"data":{"deviceId":"dev-1"}}`)
	requireCallableError(t, code, body, http.StatusForbidden, StatusPermissionDenied)

	code, body = h.call(t, FunctionReleaseDevice, token, `{"data":{"deviceId":"dev-1"}}`)
	if code != http.StatusOK {
		t.Fatalf("release: %d %v", code, body)
	}
	device, err := h.store.GetDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("get released device: %v", err)
	}
	if device.Claimed() || device.ClaimCode == "" {
		t.Fatalf("expected unclaimed device with fresh code, got %#v", device)
	}

	code, body = h.call(t, FunctionListMyDevices, "", `{}`)
	requireCallableError(t, code, body, http.StatusUnauthorized, StatusUnauthenticated)
}

func TestServer_HealthAndDrain(t *testing.T) {
	h := newHarness(t)
	get := func(path string) (int, string) {
		resp, err := h.server.Client().Get(h.server.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		defer resp.Body.Close()
		decoded := map[string]string{}
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
		return resp.StatusCode, decoded["status"]
	}

	if code, status := get("/livez"); code != http.StatusOK || status != "alive" {
		t.Fatalf("unexpected livez: %d %s", code, status)
	}
	if code, _ := get("/readyz"); code != http.StatusOK {
		t.Fatalf("expected ready, got %d", code)
	}
	if _, status := get("/drain"); status != "draining" {
		t.Fatalf("unexpected drain status %q", status)
	}
	if _, status := get("/drain"); status != "already draining" {
		t.Fatalf("unexpected second drain status %q", status)
	}
	if code, _ := get("/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while draining, got %d", code)
	}
	if h.srv.Ready() {
		t.Fatalf("expected server not ready")
	}
	if _, status := get("/undrain"); status != "ready" {
		t.Fatalf("unexpected undrain status %q", status)
	}
	if code, _ := get("/readyz"); code != http.StatusOK {
		t.Fatalf("expected ready after undrain, got %d", code)
	}
}

func TestTokenVerifier_IssuerAudienceAndExpiry(t *testing.T) {
	verifier, err := NewTokenVerifier(testSecret, "devices-test", "devices-app")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := verifier.Issue("user-7", "Ada Lovelace", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	caller, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if caller.UID != "user-7" || caller.DisplayName != "Ada Lovelace" {
		t.Fatalf("unexpected caller %#v", caller)
	}

	wrongAudience := &TokenVerifier{Secret: []byte(testSecret), Issuer: "devices-test", Audience: "other-app"}
	if _, err := wrongAudience.Verify(token); err == nil {
		t.Fatalf("expected audience mismatch")
	}

	later := &TokenVerifier{
		Secret: []byte(testSecret),
		Now:    func() time.Time { return time.Now().Add(2 * time.Hour) },
	}
	if _, err := later.Verify(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	if _, err := verifier.Issue(" ", "", time.Minute); !errors.Is(err, errMissingSubject) {
		t.Fatalf("expected missing subject error, got %v", err)
	}
	if _, err := NewTokenVerifier("", "", ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestStatusForError_HidesInternalMessages(t *testing.T) {
	status, code, message := StatusForError(errors.New("pq: connection reset"))
	if status != StatusInternal || code != http.StatusInternalServerError || message != internalMessage {
		t.Fatalf("unexpected internal mapping: %s %d %s", status, code, message)
	}
	status, code, _ = StatusForError(unknownFunctionError("x"))
	if status != StatusNotFound || code != http.StatusNotFound {
		t.Fatalf("unexpected not found mapping: %s %d", status, code)
	}
}

func TestRegistry_RegisterAndNames(t *testing.T) {
	registry := NewRegistry()
	noop := func(context.Context, core.Caller, json.RawMessage) (any, error) { return nil, nil }
	if err := registry.Register("zeta", noop); err != nil {
		t.Fatalf("register zeta: %v", err)
	}
	if err := registry.Register("alpha", noop); err != nil {
		t.Fatalf("register alpha: %v", err)
	}
	if err := registry.Register("alpha", noop); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := registry.Register(" ", noop); err == nil {
		t.Fatalf("expected blank name error")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Fatalf("expected nil function error")
	}
	names := registry.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("expected sorted names, got %v", names)
	}
	if _, err := NewDefaultRegistry(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}
