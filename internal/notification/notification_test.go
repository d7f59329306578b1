package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bondscan/internal/model"
)

func testAlert() model.Alert {
	return model.Alert{
		ID:      model.NewID(),
		Symbol:  "113672",
		Kind:    model.AlertEntrySignal,
		TS:      time.Date(2025, 6, 3, 2, 15, 0, 0, time.UTC),
		Price:   105.0,
		Message: "golden_cross + volume_spike",
	}
}

func TestWebhookNotifier_PostsAlertJSON(t *testing.T) {
	var got model.Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
	}))
	defer srv.Close()

	alert := testAlert()
	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), alert); err != nil {
		t.Fatal(err)
	}
	if got.Symbol != alert.Symbol || got.Kind != alert.Kind || got.Price != alert.Price {
		t.Errorf("delivered alert = %+v, want %+v", got, alert)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), testAlert()); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestTelegramNotifier_SendsMessage(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &payload)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("test-token", "chat-1")
	n.baseURL = srv.URL
	if err := n.Send(context.Background(), testAlert()); err != nil {
		t.Fatal(err)
	}
	if payload["chat_id"] != "chat-1" {
		t.Errorf("chat_id = %v", payload["chat_id"])
	}
	if payload["text"] == "" {
		t.Error("empty message text")
	}
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Send(ctx context.Context, alert model.Alert) error {
	f.calls++
	return errors.New("backend down")
}

func TestMulti_ContinuesPastFailingBackend(t *testing.T) {
	bad := &failingNotifier{}
	good := &failingNotifier{}
	m := NewMulti(bad, good)

	if err := m.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("multi must not propagate backend errors, got %v", err)
	}
	if bad.calls != 1 || good.calls != 1 {
		t.Errorf("all backends should be attempted: %d, %d", bad.calls, good.calls)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("entry_signal 113672 @ 105.000")
	want := `entry\_signal 113672 @ 105\.000`
	if got != want {
		t.Errorf("escapeMarkdown = %q, want %q", got, want)
	}
}
