package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestListSendsAuthAndParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Device-ID"); got != "dev-1" {
			t.Errorf("X-Device-ID = %q", got)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("pageSize") != "50" {
			t.Errorf("paging params = %s", q.Encode())
		}
		if q.Get("actorType") != "1" || q.Get("actorId") != "77" {
			t.Errorf("actor params = %s", q.Encode())
		}
		fmt.Fprint(w, `{"status":"ok","data":{"items":[{"id":1}],"has_more":true}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "dev-1")
	page, err := c.List(context.Background(), "orders", ListParams{
		Page: 2, PageSize: 50, ActorType: 1, ActorID: 77,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || !page.HasMore {
		t.Errorf("page = %+v", page)
	}
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "")
	_, err := c.Get(context.Background(), "orders", "99")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", "")
	_, err := c.Get(context.Background(), "orders", "1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestValidationErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"status":"error","message":"quantity must be positive"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "")
	_, err := c.Create(context.Background(), "order-lines", map[string]any{"quantity": -1})

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if ve.Message != "quantity must be positive" {
		t.Errorf("Message = %q", ve.Message)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, validation errors must not be retried", hits.Load())
	}
}

func TestServerErrorRetries(t *testing.T) {
	old := retryBackoff
	retryBackoff = 10 * time.Millisecond
	defer func() { retryBackoff = old }()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"status":"ok","data":{"id":"1"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "")
	raw, err := c.Get(context.Background(), "orders", "1")
	if err != nil {
		t.Fatalf("Get after retries: %v", err)
	}
	if len(raw) == 0 {
		t.Error("empty data after successful retry")
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}
}

func TestTransportErrorIsRetryable(t *testing.T) {
	te := &TransportError{Op: "GET", URL: "http://x", Err: errors.New("refused")}
	if !IsRetryable(te) {
		t.Error("TransportError not retryable")
	}
	if IsRetryable(&ValidationError{Status: 400, Message: "bad"}) {
		t.Error("ValidationError retryable")
	}
	if IsRetryable(ErrNotFound) {
		t.Error("ErrNotFound retryable")
	}
}
