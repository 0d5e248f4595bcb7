package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequence(statuses ...string) (Fetcher, *int) {
	calls := 0
	return FetcherFunc(func(ctx context.Context) (Snapshot, error) {
		i := calls
		calls++
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if statuses[i] == "ERR" {
			return Snapshot{}, errors.New("boom")
		}
		return Snapshot{Status: statuses[i]}, nil
	}), &calls
}

func TestPoll_StopsOnCompleted(t *testing.T) {
	f, calls := sequence("PROCESSING", "PROCESSING", "COMPLETED", "FAILED")
	res, err := New(10, time.Millisecond).Poll(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, *calls)
}

func TestPoll_StopsOnFailed(t *testing.T) {
	f, _ := sequence("PROCESSING", "FAILED")
	res, err := New(10, time.Millisecond).Poll(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
}

func TestPoll_TimesOutAfterBudget(t *testing.T) {
	f, calls := sequence("PROCESSING")
	res, err := New(5, time.Millisecond).Poll(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Equal(t, 5, *calls, "no query past the attempt ceiling")
	assert.Equal(t, "PROCESSING", res.Last.Status)
}

func TestPoll_ErrorsCountAsAttempts(t *testing.T) {
	f, calls := sequence("ERR", "ERR", "ERR")
	res, err := New(3, time.Millisecond).Poll(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Equal(t, 3, *calls)
	assert.EqualError(t, res.LastErr, "boom")
}

func TestPoll_ContextCancel(t *testing.T) {
	f, calls := sequence("PROCESSING")
	ctx, cancel := context.WithCancel(context.Background())
	p := New(100, time.Hour)
	p.OnAttempt = func(int, Snapshot, error) { cancel() }

	res, err := p.Poll(ctx, f)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payments/status/ws_CO_1", r.URL.Path)
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"status":"COMPLETED","receiptNumber":"QGH7XYZ1","booking":{"id":9,"status":"CONFIRMED"}}}`))
	}))
	defer srv.Close()

	f := &HTTPFetcher{BaseURL: srv.URL + "/api/v1", Token: "tkn", CheckoutRequestID: "ws_CO_1", Client: srv.Client()}
	snap, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Snapshot{Status: "COMPLETED", ReceiptNumber: "QGH7XYZ1", BookingID: 9, BookingStatus: "CONFIRMED"}, snap)
}

func TestHTTPFetcher_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"PAYMENT_NOT_FOUND","message":"Payment not found"}}`))
	}))
	defer srv.Close()

	_, err := (&HTTPFetcher{BaseURL: srv.URL, CheckoutRequestID: "x"}).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_NOT_FOUND")
}
