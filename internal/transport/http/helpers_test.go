package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/infra/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const testSecret = "test-secret"

type harness struct {
	server  *httptest.Server
	service *app.GameService
	store   *memory.Store
	broker  *memory.Broker
	clock   *clockwork.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	broker := memory.NewBroker()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	questions := memory.NewQuestionCache(memory.NewStaticQuestionLoader(map[string][]domain.Question{
		"block-1": {
			{ID: "q1", BlockID: "block-1", OrderIndex: 0, Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOption: 1, TimeSeconds: 30, MaxPoints: 100},
			{ID: "q2", BlockID: "block-1", OrderIndex: 1, Text: "Capital of Italy?", Options: []string{"Rome", "Paris"}, CorrectOption: 0, TimeSeconds: 20, MaxPoints: 100},
		},
	}), time.Minute)
	service := app.NewGameService(app.Repositories{
		Sessions: store, Participants: store, Questions: questions, Answers: store, Teachers: store,
	}, broker, app.WithClock(clock))

	api := NewAPI(service, NewTokenVerifier(testSecret))
	ws := NewWSHandler(service, time.Hour, clock)
	server := httptest.NewServer(NewRouter(api, ws, nil))
	t.Cleanup(server.Close)
	return &harness{server: server, service: service, store: store, broker: broker, clock: clock}
}

func teacherToken(t *testing.T, teacherID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   teacherID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (h *harness) do(t *testing.T, method, path, token string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body == nil {
		req.Body = http.NoBody
		req.ContentLength = 0
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected status %d, got %d", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode)
	}
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

func (h *harness) waitForSubscriber(t *testing.T, topic domain.Topic) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.broker.SubscriberCount(topic) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no subscriber on %s/%s", topic.Table, topic.SessionID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
