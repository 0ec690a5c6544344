package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dreschagin/item-tracker/internal/application/usecase"
	"github.com/dreschagin/item-tracker/internal/domain/entity"
	"github.com/dreschagin/item-tracker/internal/domain/repository"
	wsInfra "github.com/dreschagin/item-tracker/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/item-tracker/internal/interfaces/http/handler"
	"github.com/dreschagin/item-tracker/pkg/logging"
)

type memoryItemRepo struct {
	mu        sync.RWMutex
	items     []*entity.Item
	nextID    int
	findErr   error
	insertErr error
}

func newMemoryItemRepo() *memoryItemRepo {
	return &memoryItemRepo{items: make([]*entity.Item, 0)}
}

func (r *memoryItemRepo) FindAllSorted(_ context.Context) ([]*entity.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	result := make([]*entity.Item, 0, len(r.items))
	for i := len(r.items) - 1; i >= 0; i-- {
		result = append(result, r.items[i])
	}
	return result, nil
}

func (r *memoryItemRepo) Insert(_ context.Context, item *entity.Item) (*entity.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	r.nextID++
	stored := entity.Reconstruct(fmt.Sprintf("item-%d", r.nextID), item.Name(), item.CreatedAt())
	r.items = append(r.items, stored)
	return stored, nil
}

var _ repository.ItemRepository = (*memoryItemRepo)(nil)

// failingSink имитирует недоступный collector
type failingSink struct{}

func (failingSink) Deliver(_ context.Context, _ logging.Record) error {
	return errors.New("collector unreachable")
}

// logBuffer потокобезопасно накапливает локальный вывод emitter-а
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) records(t *testing.T) []logging.Record {
	t.Helper()
	b.mu.Lock()
	raw := b.buf.String()
	b.mu.Unlock()

	var records []logging.Record
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec logging.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("local output line is not valid JSON: %v (%s)", err, line)
		}
		records = append(records, rec)
	}
	return records
}

func recordsByEvent(records []logging.Record, event string) []logging.Record {
	var matched []logging.Record
	for _, rec := range records {
		if rec.Event() == event {
			matched = append(matched, rec)
		}
	}
	return matched
}

// waitForRecord дожидается появления записи: http_request эмитится после
// того, как ответ уже мог дойти до клиента
func waitForRecord(t *testing.T, buf *logBuffer, event string, match func(logging.Record) bool) logging.Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, rec := range recordsByEvent(buf.records(t), event) {
			if match == nil || match(rec) {
				return rec
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("record %q did not appear in local output", event)
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memoryItemRepo, *logBuffer) {
	t.Helper()

	buf := &logBuffer{}
	repo := newMemoryItemRepo()

	hub := wsInfra.NewHub()
	go hub.Run()

	// Sink всегда падает: ответы API от этого зависеть не должны
	emitter := logging.NewEmitter("backend", buf, failingSink{}, hub)

	listItemsUC := usecase.NewListItemsUseCase(repo, nil, emitter)
	createItemUC := usecase.NewCreateItemUseCase(repo, nil, nil, emitter)

	router := NewRouter(
		handler.NewItemsAPIHandler(listItemsUC, createItemUC, nil),
		handler.NewClientLogHandler(emitter),
		handler.NewDiagnosticsHandler(emitter),
		handler.NewLogStreamHandler(hub, []string{"http://localhost:3000"}),
		emitter,
	)

	server := httptest.NewServer(router.Setup())
	t.Cleanup(server.Close)
	return server, repo, buf
}

func doJSON(t *testing.T, client *http.Client, method, url, body string) *http.Response {
	t.Helper()
	var reader *bytes.Buffer
	if body == "" {
		reader = bytes.NewBuffer(nil)
	} else {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestE2EHealth(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := make([]byte, 16)
	n, _ := resp.Body.Read(body)
	if got := string(body[:n]); got != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", got)
	}
}

func TestE2EItemsLifecycle(t *testing.T) {
	server, _, buf := newTestServer(t)
	client := server.Client()

	for _, name := range []string{"alpha", "beta"} {
		resp := doJSON(t, client, http.MethodPost, server.URL+"/api/items", `{"name":"`+name+`"}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201 for %s, got %d", name, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := doJSON(t, client, http.MethodGet, server.URL+"/api/items", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	defer resp.Body.Close()

	var items []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0]["name"] != "beta" || items[1]["name"] != "alpha" {
		t.Fatalf("expected newest first [beta alpha], got [%v %v]", items[0]["name"], items[1]["name"])
	}

	created := recordsByEvent(buf.records(t), "item_created")
	if len(created) != 2 {
		t.Fatalf("expected 2 item_created records, got %d", len(created))
	}
	if created[0]["name"] != "alpha" || created[0]["id"] == "" {
		t.Fatalf("unexpected item_created record: %v", created[0])
	}

	fetched := recordsByEvent(buf.records(t), "items_fetched")
	if len(fetched) != 1 {
		t.Fatalf("expected 1 items_fetched record, got %d", len(fetched))
	}
	if count, ok := fetched[0]["count"].(float64); !ok || count != 2 {
		t.Fatalf("expected count 2, got %v", fetched[0]["count"])
	}
}

func TestE2ECreateValidationError(t *testing.T) {
	server, _, buf := newTestServer(t)
	client := server.Client()

	resp := doJSON(t, client, http.MethodPost, server.URL+"/api/items", `{"name":"   "}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["message"] != "Item name is required" {
		t.Fatalf("expected validation message, got %q", payload["message"])
	}

	records := buf.records(t)
	validation := recordsByEvent(records, "item_create_validation_error")
	if len(validation) != 1 {
		t.Fatalf("expected exactly 1 validation record, got %d", len(validation))
	}
	if validation[0].Level() != logging.LevelError {
		t.Fatalf("expected level error, got %q", validation[0].Level())
	}
	if len(recordsByEvent(records, "item_created")) != 0 {
		t.Fatal("expected no item_created record for rejected item")
	}

	// http_request за завершенный запрос ровно один, с level error из-за 400
	httpRec := waitForRecord(t, buf, "http_request", nil)
	if httpRec.Level() != logging.LevelError {
		t.Fatalf("expected http_request level error, got %q", httpRec.Level())
	}
	if status, _ := httpRec["status"].(float64); status != 400 {
		t.Fatalf("expected status 400 in record, got %v", httpRec["status"])
	}
}

func TestE2EStorageFailure(t *testing.T) {
	server, repo, buf := newTestServer(t)
	client := server.Client()

	repo.findErr = errors.New("connection reset by peer")

	resp := doJSON(t, client, http.MethodGet, server.URL+"/api/items", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["message"] != "Server error" {
		t.Fatalf("expected generic message, got %q", payload["message"])
	}

	fetchErrors := recordsByEvent(buf.records(t), "items_fetch_error")
	if len(fetchErrors) != 1 {
		t.Fatalf("expected 1 items_fetch_error record, got %d", len(fetchErrors))
	}
	if errText, _ := fetchErrors[0]["error"].(string); !strings.Contains(errText, "connection reset") {
		t.Fatalf("expected internal detail in record, got %v", fetchErrors[0]["error"])
	}

	repo.findErr = nil
	repo.insertErr = errors.New("write concern failed")

	resp = doJSON(t, client, http.MethodPost, server.URL+"/api/items", `{"name":"widget"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if len(recordsByEvent(buf.records(t), "item_create_error")) != 1 {
		t.Fatal("expected 1 item_create_error record")
	}
	if len(recordsByEvent(buf.records(t), "item_create_validation_error")) != 0 {
		t.Fatal("store failure must not be classified as validation")
	}
}

func TestE2ERequestTimingOn404(t *testing.T) {
	server, _, buf := newTestServer(t)

	resp, err := http.Get(server.URL + "/no-such-route")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	rec := waitForRecord(t, buf, "http_request", nil)
	if rec.Level() != logging.LevelError {
		t.Fatalf("expected level error for 404, got %q", rec.Level())
	}
	if rec["method"] != "GET" || rec["path"] != "/no-such-route" {
		t.Fatalf("unexpected method/path: %v %v", rec["method"], rec["path"])
	}
	if duration, ok := rec["duration_ms"].(float64); !ok || duration < 0 {
		t.Fatalf("expected non-negative duration_ms, got %v", rec["duration_ms"])
	}

	if got := len(recordsByEvent(buf.records(t), "http_request")); got != 1 {
		t.Fatalf("expected exactly 1 http_request record, got %d", got)
	}
}

func TestE2EClientLogNormalization(t *testing.T) {
	server, _, buf := newTestServer(t)
	client := server.Client()

	// Пустой payload: сервер заполняет все пропуски
	resp := doJSON(t, client, http.MethodPost, server.URL+"/client-log", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	defaulted := waitForRecord(t, buf, "unknown", nil)
	if defaulted.Service() != "frontend" {
		t.Fatalf("expected service frontend, got %q", defaulted.Service())
	}
	if defaulted.Level() != logging.LevelInfo {
		t.Fatalf("expected level info, got %q", defaulted.Level())
	}
	if defaulted.Message() != "No message" {
		t.Fatalf("expected default message, got %q", defaulted.Message())
	}
	if defaulted["via"] != "client-log" {
		t.Fatalf("expected via client-log, got %v", defaulted["via"])
	}
	if defaulted["ts"] == nil {
		t.Fatal("expected server-stamped ts")
	}

	// Заполненный payload: значения клиента побеждают
	resp = doJSON(t, client, http.MethodPost, server.URL+"/client-log",
		`{"event":"ui_click","level":"warn","component":"ItemForm"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	clientRec := waitForRecord(t, buf, "ui_click", nil)
	if clientRec.Level() != logging.LevelWarn {
		t.Fatalf("expected level warn preserved, got %q", clientRec.Level())
	}
	if clientRec.Message() != "ui_click" {
		t.Fatalf("expected message from event, got %q", clientRec.Message())
	}
	if clientRec["component"] != "ItemForm" {
		t.Fatalf("expected open field preserved, got %v", clientRec["component"])
	}

	// Мусор в теле эквивалентен {}
	resp = doJSON(t, client, http.MethodPost, server.URL+"/client-log", `{not json`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for malformed body, got %d", resp.StatusCode)
	}
}

func TestE2ETestErrorRoute(t *testing.T) {
	server, _, buf := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/test-error")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["message"] != "Intentional test error" {
		t.Fatalf("unexpected message: %q", payload["message"])
	}

	records := buf.records(t)
	incoming := recordsByEvent(records, "test_error_incoming")
	if len(incoming) != 1 || incoming[0].Level() != logging.LevelWarn {
		t.Fatalf("expected 1 warn test_error_incoming record, got %v", incoming)
	}
	testErr := recordsByEvent(records, "test_error")
	if len(testErr) != 1 || testErr[0].Level() != logging.LevelError {
		t.Fatalf("expected 1 error test_error record, got %v", testErr)
	}
}

func TestE2ESinkFailureDoesNotAffectResponses(t *testing.T) {
	// Sink в newTestServer всегда возвращает ошибку
	server, _, _ := newTestServer(t)
	client := server.Client()

	resp := doJSON(t, client, http.MethodPost, server.URL+"/api/items", `{"name":"widget"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 despite failing sink, got %d", resp.StatusCode)
	}

	var item map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if item["name"] != "widget" {
		t.Fatalf("expected created item in response, got %v", item)
	}
}

func TestE2ELogStream(t *testing.T) {
	server, _, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/logs"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	// Даем hub-у обработать регистрацию клиента
	time.Sleep(50 * time.Millisecond)

	resp := doJSON(t, server.Client(), http.MethodPost, server.URL+"/client-log", `{"event":"stream_probe"}`)
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	for {
		var rec map[string]any
		if err := conn.ReadJSON(&rec); err != nil {
			t.Fatalf("expected stream_probe record over websocket: %v", err)
		}
		if rec["event"] == "stream_probe" {
			if rec["service"] != "frontend" {
				t.Fatalf("expected normalized record in stream, got %v", rec)
			}
			return
		}
	}
}
