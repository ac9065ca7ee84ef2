package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"gateway/internal/adapter/memory"
	"gateway/internal/domain"
	"gateway/internal/http/handlers"
	"gateway/internal/infra"
	"gateway/internal/middleware"
	"gateway/internal/operations"
	"gateway/internal/providers/social"
	"gateway/internal/providers/veo"
)

var testJWT = middleware.JWTConfig{Secret: "router-secret"}

// fakeUpstream plays both the generation and the publishing service.
type fakeUpstream struct {
	mu        sync.Mutex
	next      int
	generated []map[string]any
	published []map[string]any
	live      map[string]map[string]any
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/generate/"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["prompt"] == "reject me" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"detail":"prompt blocked"}`)
			return
		}
		f.generated = append(f.generated, body)
		f.next++
		_ = json.NewEncoder(w).Encode(map[string]any{"operation_id": "op-" + string(rune('A'+f.next-1)), "status": "pending"})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/status/"):
		id := strings.TrimPrefix(r.URL.Path, "/status/")
		doc, ok := f.live[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"unknown operation"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	case r.Method == http.MethodPost && r.URL.Path == "/publish":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.published = append(f.published, body)
		_, _ = io.WriteString(w, `{"posted":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testEnv struct {
	server   *httptest.Server
	upstream *fakeUpstream
	ops      *memory.OperationRepository
}

func newTestEnv(t *testing.T, webhookSecret string) *testEnv {
	t.Helper()
	up := &fakeUpstream{live: map[string]map[string]any{}}
	upSrv := httptest.NewServer(up)
	t.Cleanup(upSrv.Close)

	logger := zerolog.Nop()
	ops := memory.NewOperationRepository()
	users := memory.NewUserRepository(
		domain.User{ID: "u1", Email: "ana@example.com", Name: "Ana", Role: domain.UserRoleUser},
		domain.User{ID: "u2", Email: "ben@example.com", Name: "Ben", Role: domain.UserRoleUser},
		domain.User{ID: "admin", Email: "root@example.com", Name: "Root", Role: domain.UserRoleAdmin},
	)
	webhooks := memory.NewWebhookRepository()
	metrics := infra.NewMetrics()
	gen := veo.NewClient(veo.Options{BaseURL: upSrv.URL, Timeout: 5 * time.Second})
	guard := operations.NewGuard(users)

	app := &handlers.App{
		Config:     &infra.Config{},
		Logger:     logger,
		Metrics:    metrics,
		Initiator:  operations.NewInitiator(gen, ops, nil, operations.InitiatorConfig{PublicBaseURL: "https://app.example.com"}, metrics, logger),
		Reconciler: operations.NewReconciler(ops, webhooks, users, guard, gen, domain.TransitionsStrict, metrics, logger),
		Guard:      guard,
		Operations: ops,
		Users:      users,
		Webhooks:   webhooks,
		Publisher:  social.NewClient(social.Options{BaseURL: upSrv.URL, Timeout: 5 * time.Second}),
	}
	srv := httptest.NewServer(NewRouter(app, Options{JWT: testJWT, WebhookSecret: webhookSecret, RateLimitPerMin: 1000}))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, upstream: up, ops: ops}
}

func (e *testEnv) token(t *testing.T, userID, email string) string {
	t.Helper()
	tok, err := middleware.SignJWT(testJWT, middleware.TokenClaims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rdr)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestCreateThenWebhookThenQuery(t *testing.T) {
	env := newTestEnv(t, "")
	tok := env.token(t, "u1", "ana@example.com")

	code, created := env.do(t, http.MethodPost, "/v1/operations", tok, map[string]any{"prompt": "a cat", "imageUrl": "/img.png"})
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %v", code, created)
	}
	opID, _ := created["operationId"].(string)
	if opID == "" || created["status"] != "pending" {
		t.Fatalf("create body = %v", created)
	}
	if created["imageUrlUsed"] != "https://app.example.com/img.png" {
		t.Fatalf("imageUrlUsed = %v", created["imageUrlUsed"])
	}
	if got := env.upstream.generated[0]["image_url"]; got != "https://app.example.com/img.png" {
		t.Fatalf("upstream image_url = %v", got)
	}

	code, hook := env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{
		"operationId": opID, "status": "completed", "videoUrl": "https://cdn/x.mp4",
	})
	if code != http.StatusOK || hook["success"] != true || hook["applied"] != true || hook["status"] != "completed" {
		t.Fatalf("webhook = %d %v", code, hook)
	}

	code, got := env.do(t, http.MethodGet, "/v1/operations/"+opID, "", nil)
	if code != http.StatusOK {
		t.Fatalf("query status = %d, body = %v", code, got)
	}
	if got["status"] != "completed" || got["videoUrl"] != "https://cdn/x.mp4" || got["prompt"] != "a cat" {
		t.Fatalf("query body = %v", got)
	}
	if got["completedAt"] == nil {
		t.Fatal("completedAt missing for completed operation")
	}
	owner, _ := got["owner"].(map[string]any)
	if owner["email"] != "ana@example.com" {
		t.Fatalf("owner = %v", got["owner"])
	}
}

func TestWebhooksProcessingThenFailed(t *testing.T) {
	env := newTestEnv(t, "")
	if code, body := env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{"operationId": "Y", "status": "processing"}); code != http.StatusOK {
		t.Fatalf("first webhook = %d %v", code, body)
	}
	if code, body := env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{"operationId": "Y", "status": "failed", "errorMessage": "quota"}); code != http.StatusOK {
		t.Fatalf("second webhook = %d %v", code, body)
	}
	_, got := env.do(t, http.MethodGet, "/v1/operations/Y", "", nil)
	if got["status"] != "failed" || got["errorMessage"] != "quota" {
		t.Fatalf("query body = %v", got)
	}
}

func TestUnknownOperationIsProcessingPlaceholder(t *testing.T) {
	env := newTestEnv(t, "")
	code, got := env.do(t, http.MethodGet, "/v1/operations/nope", "", nil, "Accept-Language", "es-ES")
	if code != http.StatusOK || got["status"] != "processing" || got["operationId"] != "nope" {
		t.Fatalf("placeholder = %d %v", code, got)
	}
	if got["message"] != "El video aún se está procesando o no existe" {
		t.Fatalf("message = %v", got["message"])
	}
}

func TestGuardOnStatusQuery(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{"operationId": "Z", "videoUrl": "https://cdn/z.mp4", "ownerId": "u1"})

	if code, _ := env.do(t, http.MethodGet, "/v1/operations/Z?userId=u2", "", nil); code != http.StatusForbidden {
		t.Fatalf("non-owner status = %d", code)
	}
	if code, _ := env.do(t, http.MethodGet, "/v1/operations/Z?userId=u1", "", nil); code != http.StatusOK {
		t.Fatalf("owner status = %d", code)
	}
}

func TestCreateValidationAndUpstreamErrors(t *testing.T) {
	env := newTestEnv(t, "")
	tok := env.token(t, "u1", "ana@example.com")

	code, body := env.do(t, http.MethodPost, "/v1/operations", tok, map[string]any{"imageUrl": "/img.png"})
	if code != http.StatusBadRequest || body["code"] != "bad_request" {
		t.Fatalf("missing prompt = %d %v", code, body)
	}
	if len(env.upstream.generated) != 0 {
		t.Fatal("upstream called for invalid request")
	}

	code, body = env.do(t, http.MethodPost, "/v1/operations", tok, map[string]any{"prompt": "reject me", "imageUrl": "/img.png"})
	if code != http.StatusUnprocessableEntity || body["code"] != "upstream_error" {
		t.Fatalf("upstream rejection = %d %v", code, body)
	}
	stats, _ := env.ops.AggregateStatusCounts(t.Context(), "u1")
	if stats.Total != 0 {
		t.Fatalf("records after rejection = %d", stats.Total)
	}

	if code, _ := env.do(t, http.MethodPost, "/v1/operations", "", map[string]any{"prompt": "p", "imageUrl": "/img.png"}); code != http.StatusUnauthorized {
		t.Fatalf("anonymous create = %d", code)
	}
}

func TestWebhookSecretRequired(t *testing.T) {
	env := newTestEnv(t, "hook-secret")
	payload := map[string]any{"operationId": "S", "videoUrl": "https://cdn/s.mp4"}
	if code, _ := env.do(t, http.MethodPost, "/v1/operations/webhook", "", payload); code != http.StatusUnauthorized {
		t.Fatalf("without secret = %d", code)
	}
	if code, _ := env.do(t, http.MethodPost, "/v1/operations/webhook", "", payload, middleware.WebhookSecretHeader, "hook-secret"); code != http.StatusOK {
		t.Fatalf("with secret = %d", code)
	}
}

func TestStrictRegressionAnsweredNotApplied(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{"operationId": "R", "videoUrl": "https://cdn/r.mp4"})
	code, body := env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{"operationId": "R", "status": "processing"})
	if code != http.StatusOK || body["applied"] != false || body["status"] != "completed" {
		t.Fatalf("regression = %d %v", code, body)
	}
}

func TestBareCompletionWebhookAcknowledged(t *testing.T) {
	env := newTestEnv(t, "")
	code, body := env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{"operationId": "B"})
	if code != http.StatusOK || body["applied"] != false || body["status"] != "processing" {
		t.Fatalf("bare webhook = %d %v", code, body)
	}
}

func TestLiveStatusHealsStore(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{"operationId": "L", "status": "processing", "ownerId": "u1"})
	env.upstream.live["L"] = map[string]any{
		"operation_id": "L", "status": "completed", "video_url": "https://cdn/l.mp4", "completed_at": 1735689600.25,
	}

	code, live := env.do(t, http.MethodGet, "/v1/operations/L/live?userId=u1", "", nil)
	if code != http.StatusOK || live["status"] != "completed" || live["videoUrl"] != "https://cdn/l.mp4" {
		t.Fatalf("live = %d %v", code, live)
	}
	if live["completedAt"] != "2025-01-01T00:00:00.25Z" {
		t.Fatalf("completedAt = %v", live["completedAt"])
	}
	_, stored := env.do(t, http.MethodGet, "/v1/operations/L", "", nil)
	if stored["status"] != "completed" {
		t.Fatalf("stored after live = %v", stored)
	}

	if code, _ := env.do(t, http.MethodGet, "/v1/operations/missing/live", "", nil); code != http.StatusNotFound {
		t.Fatalf("upstream 404 passthrough = %d", code)
	}
}

func TestHistoryPagingAndStats(t *testing.T) {
	env := newTestEnv(t, "")
	for _, id := range []string{"h1", "h2", "h3"} {
		env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{"operationId": id, "status": "pending", "ownerId": "u1"})
	}
	env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{"operationId": "h1", "videoUrl": "https://cdn/h1.mp4"})
	tok := env.token(t, "u1", "ana@example.com")

	code, page := env.do(t, http.MethodGet, "/v1/users/u1/operations?limit=2", tok, nil)
	if code != http.StatusOK {
		t.Fatalf("history = %d %v", code, page)
	}
	data, _ := page["data"].([]any)
	pag, _ := page["pagination"].(map[string]any)
	if len(data) != 2 || pag["total"] != float64(3) || pag["hasMore"] != true || pag["nextOffset"] != float64(2) {
		t.Fatalf("page = %v", page)
	}

	if code, _ := env.do(t, http.MethodGet, "/v1/users/u1/operations?limit=101", tok, nil); code != http.StatusBadRequest {
		t.Fatalf("limit over max = %d", code)
	}
	if code, _ := env.do(t, http.MethodGet, "/v1/users/u1/operations", env.token(t, "u2", ""), nil); code != http.StatusForbidden {
		t.Fatalf("other user history = %d", code)
	}
	if code, _ := env.do(t, http.MethodGet, "/v1/users/u1/operations", env.token(t, "admin", ""), nil); code != http.StatusOK {
		t.Fatalf("admin history = %d", code)
	}

	_, stats := env.do(t, http.MethodGet, "/v1/users/u1/operations/stats", tok, nil)
	by, _ := stats["byStatus"].(map[string]any)
	if stats["total"] != float64(3) || by["pending"] != float64(2) || by["completed"] != float64(1) || by["failed"] != float64(0) {
		t.Fatalf("stats = %v", stats)
	}
}

func TestAdminCorrection(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/v1/operations/webhook", "", map[string]any{"operationId": "C", "videoUrl": "https://cdn/c.mp4"})
	body := map[string]any{"status": "failed", "errorMessage": "takedown"}

	if code, _ := env.do(t, http.MethodPut, "/v1/operations/C", env.token(t, "u1", ""), body); code != http.StatusForbidden {
		t.Fatalf("user correction = %d", code)
	}
	code, res := env.do(t, http.MethodPut, "/v1/operations/C", env.token(t, "admin", ""), body)
	if code != http.StatusOK || res["status"] != "failed" {
		t.Fatalf("admin correction = %d %v", code, res)
	}
}

func TestWebhookRegistrationsCRUD(t *testing.T) {
	env := newTestEnv(t, "")
	owner := env.token(t, "u1", "ana@example.com")
	other := env.token(t, "u2", "ben@example.com")

	code, created := env.do(t, http.MethodPost, "/v1/webhooks", owner, map[string]any{
		"name": "notify", "url": "https://hooks.example.com/x", "events": []string{"operation.completed"},
	})
	if code != http.StatusCreated {
		t.Fatalf("create = %d %v", code, created)
	}
	id, _ := created["id"].(string)

	if code, _ := env.do(t, http.MethodPost, "/v1/webhooks", owner, map[string]any{"name": "bad", "url": "ftp://x"}); code != http.StatusBadRequest {
		t.Fatalf("invalid url = %d", code)
	}
	if code, _ := env.do(t, http.MethodPut, "/v1/webhooks/"+id, other, map[string]any{"name": "stolen"}); code != http.StatusForbidden {
		t.Fatalf("other owner update = %d", code)
	}
	if code, _ := env.do(t, http.MethodPut, "/v1/webhooks/unknown", owner, map[string]any{"name": "x"}); code != http.StatusNotFound {
		t.Fatalf("unknown update = %d", code)
	}
	code, updated := env.do(t, http.MethodPut, "/v1/webhooks/"+id, owner, map[string]any{"active": false})
	if code != http.StatusOK || updated["active"] != false || updated["name"] != "notify" {
		t.Fatalf("update = %d %v", code, updated)
	}

	_, list := env.do(t, http.MethodGet, "/v1/webhooks", other, nil)
	if items, _ := list["data"].([]any); len(items) != 0 {
		t.Fatalf("other owner sees %d registrations", len(items))
	}
	if code, _ := env.do(t, http.MethodDelete, "/v1/webhooks/"+id, owner, nil); code != http.StatusOK {
		t.Fatalf("delete = %d", code)
	}
	if code, _ := env.do(t, http.MethodDelete, "/v1/webhooks/"+id, owner, nil); code != http.StatusNotFound {
		t.Fatalf("second delete = %d", code)
	}
}

func TestSocialPublishForwardsEmail(t *testing.T) {
	env := newTestEnv(t, "")
	tok := env.token(t, "u1", "ana@example.com")

	code, body := env.do(t, http.MethodPost, "/v1/social/publish", tok, map[string]any{"content": "hi", "platforms": []string{"Instagram"}})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("publish = %d %v", code, body)
	}
	sent := env.upstream.published[0]
	if sent["userEmail"] != "ana@example.com" || sent["contentType"] != "feed" {
		t.Fatalf("upstream payload = %v", sent)
	}
	if code, _ := env.do(t, http.MethodPost, "/v1/social/publish", tok, map[string]any{"content": "hi"}); code != http.StatusBadRequest {
		t.Fatalf("no platforms = %d", code)
	}
}

func TestMeHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, "")
	code, me := env.do(t, http.MethodGet, "/v1/users/me", env.token(t, "u1", ""), nil)
	if code != http.StatusOK || me["email"] != "ana@example.com" {
		t.Fatalf("me = %d %v", code, me)
	}
	if code, _ := env.do(t, http.MethodGet, "/v1/users/me", env.token(t, "ghost", ""), nil); code != http.StatusNotFound {
		t.Fatalf("unknown me = %d", code)
	}
	if code, health := env.do(t, http.MethodGet, "/v1/healthz", "", nil); code != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("health = %d %v", code, health)
	}

	resp, err := http.Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), "gateway_http_requests_total") {
		t.Fatalf("metrics = %d, missing request counter", resp.StatusCode)
	}
}
