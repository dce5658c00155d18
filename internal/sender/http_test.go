package sender_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jjscheduler/sched/internal/domain"
	"github.com/jjscheduler/sched/internal/sender"
)

func TestHTTPChannel_SuccessGET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ch := sender.NewHTTPChannel("jjscheduler-test", true)
	job := &domain.Job{Channel: domain.ChannelHTTP, HTTPURL: srv.URL, HTTPMethod: domain.MethodGET, TimeoutSec: 5}

	result := ch.Send(context.Background(), job)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
}

func TestHTTPChannel_JSONBody(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = buf[:n]
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ch := sender.NewHTTPChannel("", true)
	job := &domain.Job{
		Channel:     domain.ChannelHTTP,
		HTTPURL:     srv.URL,
		HTTPMethod:  domain.MethodPOST,
		ContentType: "application/json",
		Payload:     `{"foo":"bar"}`,
		TimeoutSec:  5,
	}

	result := ch.Send(context.Background(), job)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	_ = gotContentType // server doesn't assert on it; body shape is what matters
	if len(gotBody) == 0 {
		t.Fatal("expected a non-empty request body")
	}
}

func TestHTTPChannel_FailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	ch := sender.NewHTTPChannel("", true)
	job := &domain.Job{Channel: domain.ChannelHTTP, HTTPURL: srv.URL, HTTPMethod: domain.MethodPOST, TimeoutSec: 5}

	result := ch.Send(context.Background(), job)
	if result.Success {
		t.Fatal("expected failure for a 500 response")
	}
	if result.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", result.StatusCode)
	}
}

func TestHTTPChannel_EmptyURL(t *testing.T) {
	ch := sender.NewHTTPChannel("", true)
	job := &domain.Job{Channel: domain.ChannelHTTP, TimeoutSec: 5}

	result := ch.Send(context.Background(), job)
	if result.Success {
		t.Fatal("expected failure for an empty http_url")
	}
}

func TestSender_UnsupportedChannel(t *testing.T) {
	s := sender.New(sender.NewHTTPChannel("", true), nil)
	job := &domain.Job{Channel: "CARRIER_PIGEON"}

	result := s.Send(context.Background(), job)
	if result.Success {
		t.Fatal("expected failure for an unsupported channel")
	}
	if result.Detail != domain.ErrUnsupportedChannel.Error() {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}
