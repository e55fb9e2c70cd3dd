package lexicon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"dentalgw/internal/kinds"
)

// HTTPStore is the concrete adapter for the external "persistent
// configuration/lexicon storage" collaborator (spec §1): a key-value
// store that returns one JSON document per user plus a shared global
// lexicon document, reached over HTTP the same way internal/asr reaches
// its ASR collaborator.
type HTTPStore struct {
	endpoint string
	client   *http.Client
}

// NewHTTPStore builds an HTTPStore pointed at a document store exposing
// GET {endpoint}/users/{userID} and GET {endpoint}/global.
func NewHTTPStore(endpoint string, client *http.Client) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{endpoint: endpoint, client: client}
}

// UserDocument fetches the per-user document. A 404 is not an error: it
// means the user has no overlay yet, so the loader falls back to
// defaults plus the global lexicon.
func (s *HTTPStore) UserDocument(ctx context.Context, userID string) (UserDocument, error) {
	u := fmt.Sprintf("%s/users/%s", s.endpoint, url.PathEscape(userID))
	var doc UserDocument
	found, err := s.fetch(ctx, u, &doc)
	if err != nil {
		return UserDocument{}, err
	}
	if !found {
		return UserDocument{}, nil
	}
	return doc, nil
}

// GlobalLexicon fetches the shared base lexicon every user inherits.
func (s *HTTPStore) GlobalLexicon(ctx context.Context) (map[string]CategoryLexicon, error) {
	u := s.endpoint + "/global"
	global := map[string]CategoryLexicon{}
	if _, err := s.fetch(ctx, u, &global); err != nil {
		return nil, err
	}
	return global, nil
}

func (s *HTTPStore) fetch(ctx context.Context, u string, v any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("lexicon: building request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, kinds.ErrUpstreamTimeout
		}
		return false, fmt.Errorf("%w: %v", kinds.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: lexicon store returned %d", kinds.ErrUpstreamRejected, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("lexicon: decoding response: %w", err)
	}
	return true, nil
}
