package lexicon

import (
	"context"
	"errors"
	"testing"
)

type stubStore struct {
	doc       UserDocument
	docErr    error
	global    map[string]CategoryLexicon
	globalErr error
	calls     int
}

func (s *stubStore) UserDocument(ctx context.Context, userID string) (UserDocument, error) {
	s.calls++
	if s.docErr != nil {
		return UserDocument{}, s.docErr
	}
	return s.doc, nil
}

func (s *stubStore) GlobalLexicon(ctx context.Context) (map[string]CategoryLexicon, error) {
	if s.globalErr != nil {
		return nil, s.globalErr
	}
	return s.global, nil
}

func TestLoaderBuildsAndCachesSnapshot(t *testing.T) {
	store := &stubStore{
		doc: UserDocument{
			Lexicon: map[string]CategoryLexicon{
				"teeth": {"element": {"elementje"}},
			},
			ProtectedWords: []string{"mevrouw"},
		},
		global: map[string]CategoryLexicon{},
	}
	loader, err := NewLoader(store, 4)
	if err != nil {
		t.Fatalf("building loader: %v", err)
	}

	snap, err := loader.Load(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := snap.Canonicals["element"]; !ok {
		t.Error("expected element to be a canonical")
	}
	if snap.Variants["elementje"] != "element" {
		t.Errorf("expected elementje to map to element, got %q", snap.Variants["elementje"])
	}

	if _, err := loader.Load(context.Background(), "user-1"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if store.calls != 1 {
		t.Errorf("expected the store to be hit exactly once, got %d calls", store.calls)
	}
	stats := loader.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %+v", stats)
	}
}

func TestLoaderInvalidateForcesRebuild(t *testing.T) {
	store := &stubStore{global: map[string]CategoryLexicon{}}
	loader, err := NewLoader(store, 4)
	if err != nil {
		t.Fatalf("building loader: %v", err)
	}

	if _, err := loader.Load(context.Background(), "user-1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	loader.Invalidate("user-1")
	if _, err := loader.Load(context.Background(), "user-1"); err != nil {
		t.Fatalf("reload after invalidate: %v", err)
	}
	if store.calls != 2 {
		t.Errorf("expected invalidate to force a second store read, got %d calls", store.calls)
	}
}

func TestLoaderAbbreviationPromotion(t *testing.T) {
	store := &stubStore{
		doc: UserDocument{
			Lexicon: map[string]CategoryLexicon{
				"teeth":      {"element": {"elementje"}},
				"teeth_abbr": {"element": {"el"}, "unrelated": {"unrel"}},
			},
		},
		global: map[string]CategoryLexicon{},
	}
	loader, err := NewLoader(store, 4)
	if err != nil {
		t.Fatalf("building loader: %v", err)
	}
	snap, err := loader.Load(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := snap.Canonicals["element"]; !ok {
		t.Error("expected abbreviation whose canonical exists in the main set to be promoted")
	}
	if snap.Variants["el"] != "element" {
		t.Errorf("expected abbreviation variant to resolve to element, got %q", snap.Variants["el"])
	}
	if _, ok := snap.Canonicals["unrelated"]; ok {
		t.Error("expected an abbreviation whose canonical has no main-category entry to stay out of Canonicals")
	}
}

func TestLoaderPropagatesStoreErrors(t *testing.T) {
	wantErr := errors.New("store unavailable")
	store := &stubStore{docErr: wantErr}
	loader, err := NewLoader(store, 4)
	if err != nil {
		t.Fatalf("building loader: %v", err)
	}
	if _, err := loader.Load(context.Background(), "user-1"); !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}
