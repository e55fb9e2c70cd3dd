package lexicon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPStoreUserDocumentRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/clinician-1" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(UserDocument{ProtectedWords: []string{"mevrouw"}})
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, nil)
	doc, err := store.UserDocument(context.Background(), "clinician-1")
	if err != nil {
		t.Fatalf("fetching user document: %v", err)
	}
	if len(doc.ProtectedWords) != 1 || doc.ProtectedWords[0] != "mevrouw" {
		t.Errorf("unexpected protected words: %+v", doc.ProtectedWords)
	}
}

func TestHTTPStoreUserDocumentMissingIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, nil)
	doc, err := store.UserDocument(context.Background(), "unknown-user")
	if err != nil {
		t.Fatalf("expected no error on 404, got %v", err)
	}
	if len(doc.ProtectedWords) != 0 {
		t.Errorf("expected an empty document, got %+v", doc)
	}
}

func TestHTTPStoreGlobalLexicon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/global" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]CategoryLexicon{
			"teeth": {"element": {"elementje"}},
		})
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, nil)
	global, err := store.GlobalLexicon(context.Background())
	if err != nil {
		t.Fatalf("fetching global lexicon: %v", err)
	}
	if _, ok := global["teeth"]; !ok {
		t.Errorf("expected a teeth category, got %+v", global)
	}
}

func TestHTTPStoreUpstreamRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, nil)
	if _, err := store.GlobalLexicon(context.Background()); err == nil {
		t.Error("expected an error on a 500 response")
	}
}
