package latepoint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "latebot/pkg/logx"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return New(Config{BaseURL: ts.URL, Timeout: 2 * time.Second}, logx.Nop())
}

func TestScheduleSuccess(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schedule" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("chat_id"); got != "100" {
			t.Errorf("chat_id = %s", got)
		}
		if got := r.URL.Query().Get("period"); got != PeriodWeek {
			t.Errorf("period = %s", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"bookings": []map[string]any{
				{"booking_id": 42, "start_date": "2026-09-01", "start_time": "13:30"},
			},
		})
	})

	res := c.Schedule(context.Background(), 100, PeriodWeek)
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Message)
	}
	if len(res.Bookings) != 1 || res.Bookings[0].BookingID != 42 {
		t.Fatalf("unexpected bookings: %+v", res.Bookings)
	}
}

func TestServerErrorMapsToFailure(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	res := c.Schedule(context.Background(), 100, PeriodToday)
	if res.Success {
		t.Fatal("expected failure on 502")
	}
	if res.Message != "server error: 502" {
		t.Fatalf("Message = %q", res.Message)
	}
}

func TestClientErrorCarriesUpstreamMessage(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "token expired"})
	})

	res := c.Register(context.Background(), "tok", 100, "bob")
	if res.Success {
		t.Fatal("expected failure on 403")
	}
	if res.Message != "token expired" {
		t.Fatalf("Message = %q", res.Message)
	}
}

func TestInvalidJSONMapsToFailure(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})

	res := c.Booking(context.Background(), 42, 100)
	if res.Success {
		t.Fatal("expected failure on invalid JSON")
	}
	if res.Message != "invalid JSON response" {
		t.Fatalf("Message = %q", res.Message)
	}
}

func TestSetStatusPostsBody(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/booking/42/status" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["status"] != "approved" || body["chat_id"] != "100" {
			t.Errorf("body = %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	res := c.SetStatus(context.Background(), 42, 100, "approved")
	if !res.Success {
		t.Fatalf("Success = false: %s", res.Message)
	}
}

func TestUnreachableUpstream(t *testing.T) {
	t.Parallel()
	c := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 500 * time.Millisecond}, logx.Nop())
	res := c.Schedule(context.Background(), 100, PeriodToday)
	if res.Success {
		t.Fatal("expected failure for unreachable upstream")
	}
	if res.Message == "" {
		t.Fatal("expected a failure message")
	}
}
