package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func testNotifier(serverURL string) *TelegramNotifier {
	n := NewTelegramNotifier("test-token", "42", "")
	n.baseURL = serverURL
	return n
}

func TestSend(t *testing.T) {
	var gotPath, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotText = r.FormValue("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := testNotifier(srv.URL)
	if !n.Enabled() {
		t.Fatal("notifier with credentials should be enabled")
	}
	if err := n.Send("hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotText != "hello" {
		t.Errorf("text = %q, want hello", gotText)
	}
}

func TestSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	err := testNotifier(srv.URL).Send("hello")
	if err == nil {
		t.Fatal("expected error on ok=false response")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error should carry API description, got: %v", err)
	}
}

func TestSendWithRetry_Recovers(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"ok":false,"description":"flood"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := testNotifier(srv.URL).SendWithRetry(context.Background(), "hello", 2); err != nil {
		t.Fatalf("retry should recover: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestSendWithRetry_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"ok":false,"description":"down"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := testNotifier(srv.URL).SendWithRetry(ctx, "hello", 3)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDisabledWithoutCredentials(t *testing.T) {
	if NewTelegramNotifier("", "", "").Enabled() {
		t.Error("empty credentials should disable the notifier")
	}
}
