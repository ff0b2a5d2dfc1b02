package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workfacts/notify"
	"github.com/warp/workfacts/timeoff"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type recordingSink struct {
	mu     sync.Mutex
	events []timeoff.Event
	err    error
	block  chan struct{}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(_ context.Context, ev timeoff.Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func submitted(userID string) timeoff.Event {
	return timeoff.Event{
		Kind: timeoff.EventSubmitted,
		Request: timeoff.LeaveRequest{
			ID:        "req-1",
			UserID:    userID,
			LeaveType: timeoff.LeaveAnnual,
			StartDate: "2025-03-10",
			EndDate:   "2025-03-11",
			Days:      2,
			Status:    timeoff.StatusPending,
		},
		At: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// DISPATCHER
// =============================================================================

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{err: errors.New("down")}
	c := &recordingSink{}
	d := notify.NewDispatcher(nil, 8, a, b, c)
	d.Start()

	require.NoError(t, d.Notify(context.Background(), submitted("u1")))
	require.NoError(t, d.Notify(context.Background(), submitted("u2")))
	d.Stop()

	// a failing sink does not stop the others
	assert.Equal(t, 2, a.count())
	assert.Equal(t, 2, b.count())
	assert.Equal(t, 2, c.count())
	assert.Equal(t, "u1", a.events[0].Request.UserID)
	assert.Equal(t, "u2", a.events[1].Request.UserID)
}

func TestDispatcher_NotRunning(t *testing.T) {
	d := notify.NewDispatcher(nil, 1)
	assert.ErrorIs(t, d.Notify(context.Background(), submitted("u1")), notify.ErrNotRunning)

	d.Start()
	d.Stop()
	assert.ErrorIs(t, d.Notify(context.Background(), submitted("u1")), notify.ErrNotRunning)
}

func TestDispatcher_QueueFullDrops(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := notify.NewDispatcher(nil, 1, sink)
	d.Start()

	// the worker takes the first event and blocks in the sink; the second
	// fills the queue; the third must be dropped
	require.NoError(t, d.Notify(context.Background(), submitted("u1")))
	require.Eventually(t, func() bool {
		return d.Notify(context.Background(), submitted("u2")) == nil
	}, time.Second, time.Millisecond)

	err := d.Notify(context.Background(), submitted("u3"))
	assert.ErrorIs(t, err, notify.ErrQueueFull)

	close(sink.block)
	d.Stop()
	assert.Equal(t, 2, sink.count())
}

func TestDispatcher_WithWorkflow(t *testing.T) {
	sink := &recordingSink{}
	d := notify.NewDispatcher(nil, 8, sink)
	d.Start()

	wf := timeoff.NewWorkflow(stubBalances{}, d, nil)
	days := 1.0
	_, err := wf.Submit(context.Background(), timeoff.SubmitInput{
		UserID: "u1", LeaveType: timeoff.LeaveSick,
		StartDate: "2025-03-10", EndDate: "2025-03-10", Days: &days,
	})
	require.NoError(t, err)
	d.Stop()

	require.Equal(t, 1, sink.count())
	assert.Equal(t, timeoff.EventSubmitted, sink.events[0].Kind)
}

type stubBalances struct{}

func (stubBalances) EnsureSeeded(context.Context, string) (bool, error)     { return false, nil }
func (stubBalances) LeaveBalance(context.Context, string) (float64, error)  { return 10, nil }
func (stubBalances) SetLeaveBalance(context.Context, string, float64) error { return nil }

// =============================================================================
// WEBHOOK
// =============================================================================

func TestWebhook_PostsJSON(t *testing.T) {
	var (
		got    map[string]any
		header string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		header = r.Header.Get("X-Workfacts-Event")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := notify.NewWebhook(srv.URL, nil).Send(context.Background(), submitted("u1"))
	require.NoError(t, err)

	assert.Equal(t, "leave_submitted", header)
	assert.Equal(t, "leave_submitted", got["event"])
	req := got["request"].(map[string]any)
	assert.Equal(t, "u1", req["user_id"])
	assert.Equal(t, "req-1", req["request_id"])
}

func TestWebhook_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := notify.NewWebhook(srv.URL, nil).Send(context.Background(), submitted("u1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

// =============================================================================
// TELEGRAM
// =============================================================================

// fakeBotAPI answers getMe and records sendMessage calls.
func fakeBotAPI(t *testing.T) (*httptest.Server, *[]string, *[]string) {
	var (
		mu    sync.Mutex
		texts []string
		chats []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"workfacts","username":"workfacts_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			assert.NoError(t, r.ParseForm())
			mu.Lock()
			texts = append(texts, r.PostForm.Get("text"))
			chats = append(chats, r.PostForm.Get("chat_id"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"group"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &texts, &chats
}

func TestTelegram_SendsMessage(t *testing.T) {
	srv, texts, chats := fakeBotAPI(t)

	tg, err := notify.NewTelegram("123:abc", 42, srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	assert.Equal(t, "telegram", tg.Name())

	require.NoError(t, tg.Send(context.Background(), submitted("u1")))

	require.Len(t, *texts, 1)
	assert.Equal(t, "42", (*chats)[0])
	assert.Contains(t, (*texts)[0], "New leave request")
	assert.Contains(t, (*texts)[0], "User: u1")
}

func TestTelegram_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	_, err := notify.NewTelegram("bad", 42, srv.URL+"/bot%s/%s")
	assert.Error(t, err)
}

func TestFormatText(t *testing.T) {
	ev := submitted("u1")
	ev.Kind = timeoff.EventApproved
	ev.Resolution = &timeoff.Resolution{
		Status:             timeoff.StatusApproved,
		Debited:            true,
		RemainingLeaveDays: 12.5,
		Persisted:          false,
	}

	text := notify.FormatText(ev)
	assert.Contains(t, text, "Leave request approved (req-1)")
	assert.Contains(t, text, "Days: 2")
	assert.Contains(t, text, "Dates: 2025-03-10 to 2025-03-11")
	assert.Contains(t, text, "Remaining annual leave: 12.5")
	assert.Contains(t, text, "not saved")
}
