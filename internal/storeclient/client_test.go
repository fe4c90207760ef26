package storeclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonshop/internal/domain"
	"lessonshop/internal/requestid"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/", RequestTimeout: 2 * time.Second, BreakerFailures: 2, BreakerCooldown: time.Minute})
	require.NoError(t, err)
	return c
}

func TestListLessonsDecodesBothIDForms(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/lessons", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"_id":"abc","subject":"Math","location":"London","price":100,"spaces":5,"icon":"images/math.png"},
			{"id":"def","subject":"Art","location":"York","price":"12.50","spaces":0,"version":3}
		]`))
	}))

	lessons, err := c.ListLessons(context.Background())

	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "abc", lessons[0].ID)
	assert.True(t, decimal.NewFromInt(100).Equal(lessons[0].Price))
	assert.Equal(t, "def", lessons[1].ID)
	assert.Equal(t, "12.5", lessons[1].Price.String())
	assert.Equal(t, int64(3), lessons[1].Version)
}

func TestCreateOrderPostsJSONWithRequestID(t *testing.T) {
	var got domain.OrderRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "sub-1", r.Header.Get(requestid.Header))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"o-9","firstName":"John","lines":[{"lessonId":"a","quantity":2}]}`))
	}))

	ctx := requestid.With(context.Background(), "sub-1")
	order, err := c.CreateOrder(ctx, domain.OrderRequest{
		FirstName: "John",
		Lines:     []domain.OrderLine{{LessonID: "a", Quantity: 2}},
		LessonIDs: []string{"a", "a"},
	})

	require.NoError(t, err)
	assert.Equal(t, "o-9", order.ID)
	assert.Equal(t, 2, order.Quantity())
	assert.Equal(t, []string{"a", "a"}, got.LessonIDs)
}

func TestCreateOrderAcceptsEmptyBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	order, err := c.CreateOrder(context.Background(), domain.OrderRequest{})
	require.NoError(t, err)
	assert.NotNil(t, order)
}

func TestUpdateSpacesSendsIfMatch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/lessons/m1", r.URL.Path)
		assert.Equal(t, `"4"`, r.Header.Get("If-Match"))
		var body domain.SpacesUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 2, body.Spaces)
		_, _ = w.Write([]byte(`{"id":"m1","spaces":2,"price":10,"version":5}`))
	}))

	l, err := c.UpdateSpaces(context.Background(), "m1", 2, 4)

	require.NoError(t, err)
	assert.Equal(t, 2, l.Spaces)
	assert.Equal(t, int64(5), l.Version)
}

func TestUpdateSpacesWithoutVersionIsUnconditional(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-Match"))
		w.WriteHeader(http.StatusNoContent)
	}))

	l, err := c.UpdateSpaces(context.Background(), "m1", 0, 0)

	require.NoError(t, err)
	assert.Equal(t, "m1", l.ID)
	assert.Equal(t, 0, l.Spaces)
}

func TestStatusErrorsMapToDomain(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lessons/gone":
			http.Error(w, "no such lesson", http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusPreconditionFailed)
		}
	}))

	_, err := c.UpdateSpaces(context.Background(), "gone", 1, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "no such lesson", se.Body)

	_, err = c.UpdateSpaces(context.Background(), "m1", 1, 2)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestBreakerOpensOnServerErrorsOnly(t *testing.T) {
	var calls atomic.Int32
	status := atomic.Int32{}
	status.Store(http.StatusBadRequest)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	}))

	for range 3 {
		_, err := c.ListLessons(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, int32(3), calls.Load())

	status.Store(http.StatusServiceUnavailable)
	for range 2 {
		_, _ = c.ListLessons(context.Background())
	}
	_, err := c.ListLessons(context.Background())
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState), "got %v", err)
	assert.Equal(t, int32(5), calls.Load())
}

func TestRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	c, err := New(Config{BaseURL: srv.URL, RequestTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.ListLessons(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	assert.Error(t, err)
	_, err = New(Config{})
	assert.Error(t, err)
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://store", "", ""},
		{"http://store", "   ", ""},
		{"http://store", "https://cdn/x.png", "https://cdn/x.png"},
		{"http://store", "http://cdn/x.png", "http://cdn/x.png"},
		{"http://store", "/images/x.png", "http://store/images/x.png"},
		{"http://store/", "images/x.png", "http://store/images/x.png"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ImageURL(tc.base, tc.path), "%s + %s", tc.base, tc.path)
	}
}
