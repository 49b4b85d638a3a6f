package kitchenstream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/appetiteclub/ordering/internal/kitchen"
	"github.com/appetiteclub/ordering/internal/tenant"
	"github.com/appetiteclub/ordering/internal/ticketstream"
	"github.com/appetiteclub/ordering/pkg/event"
	"github.com/go-chi/chi/v5"
)

type frame struct {
	event string
	data  string
}

func readFrame(t *testing.T, r *bufio.Reader) frame {
	t.Helper()
	var f frame
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if f.event != "" {
				return f
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			f.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func startStream(t *testing.T, h *SSEHandler, tenantID string) (*bufio.Reader, context.CancelFunc) {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(tenant.WithTenant(req.Context(), tenantID)))
		})
	})
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/tickets/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("GET /tickets/stream: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	return bufio.NewReader(resp.Body), cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSSEHandlerStreamsSnapshotThenLiveEvents(t *testing.T) {
	hub := ticketstream.NewHub(nil)
	snap := &MockSnapshotter{
		OutstandingFunc: func(ctx context.Context, tenantID string) ([]kitchen.Ticket, error) {
			return []kitchen.Ticket{{ID: "tk-1", TenantID: tenantID, Status: "pending"}}, nil
		},
	}
	h := NewSSEHandler(hub, snap, nil)

	stream, cancel := startStream(t, h, "t-1")
	defer cancel()

	if f := readFrame(t, stream); f.event != EventConnected || !strings.Contains(f.data, `"tenant_id":"t-1"`) {
		t.Fatalf("first frame = %+v", f)
	}

	f := readFrame(t, stream)
	if f.event != EventSnapshot {
		t.Fatalf("second frame event = %q, want %q", f.event, EventSnapshot)
	}
	var tickets []kitchen.Ticket
	if err := json.Unmarshal([]byte(f.data), &tickets); err != nil {
		t.Fatalf("snapshot decode: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != "tk-1" {
		t.Fatalf("snapshot = %+v", tickets)
	}

	hub.Publish("t-2", event.TicketEvent{EventType: event.EventTicketCreated, TicketID: "other"})
	hub.Publish("t-1", event.TicketEvent{EventType: event.EventTicketAcknowledged, TicketID: "tk-1", Status: "started"})

	f = readFrame(t, stream)
	if f.event != event.EventTicketAcknowledged {
		t.Fatalf("live frame event = %q", f.event)
	}
	var evt event.TicketEvent
	if err := json.Unmarshal([]byte(f.data), &evt); err != nil {
		t.Fatal(err)
	}
	if evt.TicketID != "tk-1" || evt.TenantID != "t-1" {
		t.Errorf("live event = %+v", evt)
	}
}

func TestSSEHandlerSnapshotFailureSendsEmptyList(t *testing.T) {
	hub := ticketstream.NewHub(nil)
	snap := &MockSnapshotter{
		OutstandingFunc: func(ctx context.Context, tenantID string) ([]kitchen.Ticket, error) {
			return nil, errors.New("store down")
		},
	}
	stream, cancel := startStream(t, NewSSEHandler(hub, snap, nil), "t-1")
	defer cancel()

	readFrame(t, stream)
	f := readFrame(t, stream)
	if f.event != EventSnapshot || f.data != "[]" {
		t.Errorf("snapshot frame = %+v, want empty list", f)
	}
}

func TestSSEHandlerUnsubscribesOnDisconnect(t *testing.T) {
	hub := ticketstream.NewHub(nil)
	stream, cancel := startStream(t, NewSSEHandler(hub, &MockSnapshotter{}, nil), "t-1")

	readFrame(t, stream)
	readFrame(t, stream)
	if _, listeners := hub.Counts(); listeners != 1 {
		t.Fatalf("listeners = %d, want 1", listeners)
	}

	cancel()
	waitFor(t, func() bool {
		_, listeners := hub.Counts()
		return listeners == 0
	})
}

func TestSSEHandlerRequiresTenant(t *testing.T) {
	h := NewSSEHandler(ticketstream.NewHub(nil), &MockSnapshotter{}, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tickets/stream", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
