package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"bookie/internal/app"
	"bookie/internal/ratelimit"
	"bookie/pkg/domain"
	"bookie/pkg/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv *httptest.Server
	app *app.App
	mem *store.MemoryStore
}

func newTestServer(t *testing.T, limiter *ratelimit.FixedWindowLimiter) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	a, err := app.New(app.Config{
		Store:          mem,
		Sessions:       sessions,
		StartingPoints: 100,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	s, err := New(Config{App: a, LoginLimiter: limiter})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, app: a, mem: mem}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": "longenough",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d body %v", email, resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register %s: no token in %v", email, body)
	}
	return token
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t, nil)
	resp, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: status %d body %v", resp.StatusCode, body)
	}
}

func TestAuthFlowAndErrorEnvelope(t *testing.T) {
	env := newTestServer(t, nil)

	token := env.register(t, "first@example.com")

	resp, body := env.do(t, http.MethodGet, "/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d body %v", resp.StatusCode, body)
	}
	user, _ := body["user"].(map[string]any)
	if user["role"] != string(domain.RoleAdmin) {
		t.Fatalf("first user role = %v, want admin", user["role"])
	}
	profile, _ := body["profile"].(map[string]any)
	if profile["points"] != float64(100) {
		t.Fatalf("starting points = %v, want 100", profile["points"])
	}

	resp, body = env.do(t, http.MethodGet, "/auth/me", "bogus", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", resp.StatusCode)
	}
	if body["code"] != "AUTH_INVALID_TOKEN" {
		t.Fatalf("bad token code = %v, want AUTH_INVALID_TOKEN", body["code"])
	}
	if rid, _ := body["requestId"].(string); rid == "" {
		t.Fatalf("error envelope missing requestId: %v", body)
	}

	resp, body = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "first@example.com",
		"password": "wrongpass",
	})
	if resp.StatusCode != http.StatusBadRequest || body["code"] != "AUTH_INVALID_CREDENTIALS" {
		t.Fatalf("bad login: status %d code %v", resp.StatusCode, body["code"])
	}
}

func TestSubscribeEndpointMapsEngineErrors(t *testing.T) {
	env := newTestServer(t, nil)
	adminToken := env.register(t, "author@example.com")
	readerToken := env.register(t, "reader@example.com")

	resp, book := env.do(t, http.MethodPost, "/books", adminToken, map[string]any{
		"title":        "Serialized",
		"chapterPrice": 60.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create book: status %d body %v", resp.StatusCode, book)
	}
	bookID := int64(book["id"].(float64))
	bookPath := fmt.Sprintf("/books/%d", bookID)

	// Not yet approved.
	resp, body := env.do(t, http.MethodPost, bookPath+"/subscribe", readerToken, nil)
	if resp.StatusCode != http.StatusConflict || body["code"] != "BOOK_NOT_APPROVED" {
		t.Fatalf("pre-moderation subscribe: status %d code %v", resp.StatusCode, body["code"])
	}

	// The first registered user is the admin; approve their own book.
	resp, body = env.do(t, http.MethodPatch, bookPath+"/status", adminToken, map[string]string{
		"status": "approved",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d body %v", resp.StatusCode, body)
	}

	// Non-admin cannot moderate.
	resp, body = env.do(t, http.MethodPatch, bookPath+"/status", readerToken, map[string]string{
		"status": "approved",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("reader moderation: status %d body %v", resp.StatusCode, body)
	}

	// One chapter at price 60 fits the 100-point starting balance.
	resp, published := env.do(t, http.MethodPost, bookPath+"/chapters", adminToken, map[string]string{
		"name":    "one",
		"content": "text",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add chapter: status %d body %v", resp.StatusCode, published)
	}

	resp, body = env.do(t, http.MethodPost, bookPath+"/subscribe", readerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("subscribe: status %d body %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, bookPath+"/subscribe", readerToken, nil)
	if resp.StatusCode != http.StatusConflict || body["code"] != "SUBSCRIPTION_EXISTS" {
		t.Fatalf("double subscribe: status %d code %v", resp.StatusCode, body["code"])
	}

	// A second chapter costs another 60; the reader has 40 left, so the next
	// catch-up subscribe after lapsing must fail with POINTS_INSUFFICIENT.
	resp, _ = env.do(t, http.MethodPost, bookPath+"/unsubscribe", readerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unsubscribe: status %d", resp.StatusCode)
	}
	resp, published = env.do(t, http.MethodPost, bookPath+"/chapters", adminToken, map[string]string{
		"name":    "two",
		"content": "text",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add chapter two: status %d", resp.StatusCode)
	}
	if published["chargedCount"] != float64(0) {
		t.Fatalf("chargedCount = %v, want 0 with no active subscribers", published["chargedCount"])
	}
	resp, body = env.do(t, http.MethodPost, bookPath+"/subscribe", readerToken, nil)
	if resp.StatusCode != http.StatusPaymentRequired || body["code"] != "POINTS_INSUFFICIENT" {
		t.Fatalf("catch-up subscribe: status %d code %v", resp.StatusCode, body["code"])
	}
}

func TestChapterReadGate(t *testing.T) {
	env := newTestServer(t, nil)
	adminToken := env.register(t, "author@example.com")
	readerToken := env.register(t, "reader@example.com")
	outsiderToken := env.register(t, "outsider@example.com")

	resp, book := env.do(t, http.MethodPost, "/books", adminToken, map[string]any{
		"title":        "Gated",
		"chapterPrice": 5.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create book: %d", resp.StatusCode)
	}
	bookID := int64(book["id"].(float64))
	bookPath := fmt.Sprintf("/books/%d", bookID)
	if resp, _ := env.do(t, http.MethodPatch, bookPath+"/status", adminToken, map[string]string{"status": "approved"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("approve failed")
	}
	if resp, _ := env.do(t, http.MethodPost, bookPath+"/subscribe", readerToken, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("subscribe failed")
	}
	resp, published := env.do(t, http.MethodPost, bookPath+"/chapters", adminToken, map[string]string{
		"name":    "one",
		"content": "secret text",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add chapter: %d", resp.StatusCode)
	}
	chapter := published["chapter"].(map[string]any)
	chapterPath := fmt.Sprintf("%s/chapters/%d", bookPath, int64(chapter["id"].(float64)))

	resp, body := env.do(t, http.MethodGet, chapterPath, readerToken, nil)
	if resp.StatusCode != http.StatusOK || body["content"] != "secret text" {
		t.Fatalf("subscriber read: status %d body %v", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodGet, chapterPath, outsiderToken, nil)
	if resp.StatusCode != http.StatusForbidden || body["code"] != "CHAPTER_NOT_OWNED" {
		t.Fatalf("outsider read: status %d code %v", resp.StatusCode, body["code"])
	}

	// Chapter list hides content.
	resp, list := env.do(t, http.MethodGet, bookPath+"/chapters", outsiderToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list chapters: %d", resp.StatusCode)
	}
	items := list["items"].([]any)
	if first := items[0].(map[string]any); first["content"] != "" {
		t.Fatalf("chapter list leaked content: %v", first["content"])
	}
}

func TestTriviaEndpoints(t *testing.T) {
	env := newTestServer(t, nil)
	adminToken := env.register(t, "admin@example.com")
	playerToken := env.register(t, "player@example.com")

	today := time.Now().UTC().Format("2006-01-02")
	resp, question := env.do(t, http.MethodPost, "/questions", adminToken, map[string]any{
		"question": "Who wrote it?",
		"points":   10.0,
		"date":     today,
		"answers": []map[string]any{
			{"content": "A", "correct": true},
			{"content": "B", "correct": false},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create question: status %d body %v", resp.StatusCode, question)
	}
	questionID := int64(question["id"].(float64))

	resp, today2 := env.do(t, http.MethodGet, "/questions/today", playerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("today: status %d body %v", resp.StatusCode, today2)
	}
	answers := today2["answers"].([]any)
	if len(answers) != 2 {
		t.Fatalf("today answers = %v", answers)
	}
	for _, raw := range answers {
		if _, leaked := raw.(map[string]any)["correct"]; leaked {
			t.Fatalf("today leaked correct flag: %v", raw)
		}
	}

	// Find the correct answer id through the store; the API hides it.
	stored, err := env.mem.ListAnswers(questionID)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	var correctID int64
	for _, a := range stored {
		if a.Correct {
			correctID = a.ID
		}
	}

	answerPath := fmt.Sprintf("/questions/%d/answer", questionID)
	resp, result := env.do(t, http.MethodPost, answerPath, playerToken, map[string]any{"answerId": correctID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer: status %d body %v", resp.StatusCode, result)
	}
	if result["wasCorrect"] != true || result["correctContent"] != "A" {
		t.Fatalf("answer result = %v", result)
	}

	resp, last := env.do(t, http.MethodGet, "/profile/last-answered", playerToken, nil)
	if resp.StatusCode != http.StatusOK || last["answered"] != true {
		t.Fatalf("last answered: status %d body %v", resp.StatusCode, last)
	}

	// Players cannot manage questions.
	resp, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/questions/%d", questionID), playerToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("player delete: status %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/questions/%d", questionID), adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin delete: status %d", resp.StatusCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(redisSrv.Addr(), "", "", 2, time.Minute)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	env := newTestServer(t, limiter)
	env.register(t, "user@example.com")

	creds := map[string]string{"email": "user@example.com", "password": "longenough"}
	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, http.MethodPost, "/auth/login", "", creds)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %d: status %d", i, resp.StatusCode)
		}
	}
	resp, body := env.do(t, http.MethodPost, "/auth/login", "", creds)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("limited login: status %d body %v", resp.StatusCode, body)
	}
	if body["code"] != "AUTH_RATE_LIMITED" {
		t.Fatalf("limited login code = %v", body["code"])
	}
}
