package asr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dentalgw/internal/kinds"
)

func TestHTTPProviderParsesTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body transcribeRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Language != "nl" {
			t.Errorf("expected language nl, got %s", body.Language)
		}
		json.NewEncoder(w).Encode(transcribeResponseBody{Text: "de kies"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, "test-provider", "test-model")
	res, err := p.Transcribe(context.Background(), Request{Audio: []byte{1, 2, 3}, Language: "nl"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "de kies" {
		t.Errorf("expected raw transcript to round-trip, got %q", res.Text)
	}
	if res.Provider != "test-provider" {
		t.Errorf("expected provider name to be set, got %q", res.Provider)
	}
}

func TestHTTPProviderMapsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transcribeResponseBody{Error: "bad audio"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, "test-provider", "test-model")
	_, err := p.Transcribe(context.Background(), Request{Audio: []byte{1}})
	if !errors.Is(err, kinds.ErrUpstreamRejected) {
		t.Errorf("expected ErrUpstreamRejected, got %v", err)
	}
}

func TestHTTPProviderMapsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Hour, "test-provider", "test-model")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := p.Transcribe(ctx, Request{Audio: []byte{1}})
	if !errors.Is(err, kinds.ErrUpstreamTimeout) {
		t.Errorf("expected ErrUpstreamTimeout, got %v", err)
	}
}
