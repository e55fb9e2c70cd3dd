// Package asr defines the narrow collaborator interface the gateway
// uses to reach an external speech-recognition provider, plus an HTTP
// implementation of it (spec §1 "explicitly out of scope: the ASR
// vendor", consumed through the interface named in §6).
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dentalgw/internal/kinds"
)

// Request is what the orchestrator hands to a Provider.
type Request struct {
	Audio    []byte
	Language string
	Prompt   string
}

// Result is a provider's raw transcription, before the normalization
// pipeline ever sees it.
type Result struct {
	Text     string
	Provider string
	Model    string
}

// Provider is the narrow capability the Transcribe Orchestrator depends
// on. Any speech-recognition backend that can turn an audio buffer and a
// prompt into a raw transcript satisfies it.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// HTTPProvider calls a remote ASR endpoint over HTTP, the shape the
// configured upstream used in production takes (spec §6 CLI/env
// "upstream ASR endpoint").
type HTTPProvider struct {
	endpoint string
	client   *http.Client
	provider string
	model    string
}

// NewHTTPProvider builds an HTTPProvider. timeout bounds every call; the
// orchestrator also applies its own per-request deadline via ctx.
func NewHTTPProvider(endpoint string, timeout time.Duration, provider, model string) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		provider: provider,
		model:    model,
	}
}

type transcribeRequestBody struct {
	Audio    []byte `json:"audio"`
	Language string `json:"language"`
	Prompt   string `json:"prompt"`
}

type transcribeResponseBody struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Transcribe posts req to the configured endpoint and parses the raw
// transcript out of the response.
func (p *HTTPProvider) Transcribe(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(transcribeRequestBody{
		Audio:    req.Audio,
		Language: req.Language,
		Prompt:   req.Prompt,
	})
	if err != nil {
		return Result{}, fmt.Errorf("asr: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("asr: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, kinds.ErrUpstreamTimeout
		}
		return Result{}, fmt.Errorf("%w: %v", kinds.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("asr: reading response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return Result{}, kinds.ErrUpstreamUnavailable
	}
	if resp.StatusCode >= 400 {
		return Result{}, kinds.ErrUpstreamRejected
	}

	var parsed transcribeResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("asr: decoding response: %w", err)
	}
	if parsed.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", kinds.ErrUpstreamRejected, parsed.Error)
	}

	return Result{Text: parsed.Text, Provider: p.provider, Model: p.model}, nil
}
