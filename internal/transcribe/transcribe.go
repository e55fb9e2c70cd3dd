// Package transcribe implements the Transcribe Orchestrator: it
// validates an inbound audio buffer, hands it to an ASR collaborator,
// and feeds the raw transcript through the normalization pipeline
// (spec §4.8).
package transcribe

import (
	"context"
	"errors"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"dentalgw/internal/asr"
	"dentalgw/internal/kinds"
	"dentalgw/internal/lexicon"
	"dentalgw/internal/normalize"
)

const (
	// maxAudioBytes is the 25 MB request-body ceiling (spec §4.8).
	maxAudioBytes = 25 * 1024 * 1024
	// minDurationSeconds is the 0.1 s floor (spec §4.8).
	minDurationSeconds = 0.1
	// bytesPerSecond assumes 16kHz mono 16-bit PCM; Transcribe uses it
	// to estimate duration from the buffer length.
	bytesPerSecond = 16000 * 2
)

// Result is the orchestrator's output tuple (spec §4.8, plus the
// collaborator's provider/model labels echoed back per spec §6's REST
// transcription response shape).
type Result struct {
	Raw        string
	Normalized string
	Language   string
	Duration   float64
	Provider   string
	Model      string
}

// Orchestrator glues an asr.Provider to the normalization pipeline.
type Orchestrator struct {
	provider asr.Provider
	timeout  time.Duration
}

// New builds an Orchestrator. timeout bounds each ASR call; on expiry
// the orchestrator returns ErrUpstreamTimeout without invoking the
// pipeline (spec §5 "Cancellation and timeouts").
func New(provider asr.Provider, timeout time.Duration) *Orchestrator {
	return &Orchestrator{provider: provider, timeout: timeout}
}

// Transcribe validates audio, calls the ASR collaborator, and — on
// success — runs the normalization pipeline over the raw transcript.
func (o *Orchestrator) Transcribe(ctx context.Context, audio []byte, language, prompt string, snap *lexicon.Snapshot) (Result, error) {
	if len(audio) > maxAudioBytes {
		return Result{}, kinds.ErrPayloadTooBig
	}
	duration := float64(len(audio)) / float64(bytesPerSecond)
	if duration < minDurationSeconds {
		return Result{}, kinds.ErrValidation
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	asrResult, err := o.provider.Transcribe(callCtx, asr.Request{Audio: audio, Language: language, Prompt: prompt})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, kinds.ErrUpstreamTimeout
		}
		return Result{}, err
	}

	normResult, err := normalize.Run(asrResult.Text, language, snap)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Raw:        asrResult.Text,
		Normalized: normResult.NormalizedText,
		Language:   language,
		Duration:   duration,
		Provider:   asrResult.Provider,
		Model:      asrResult.Model,
	}, nil
}

// TranscribeMany runs Transcribe over several requests concurrently, at
// most GOMAXPROCS items at a time, bounding the CPU-bound pipeline
// work so a burst of large requests can't starve WebSocket I/O tasks
// (spec §5 "the pipeline is CPU-bound... large requests execute on a
// blocking-capable worker").
func (o *Orchestrator) TranscribeMany(ctx context.Context, reqs []Request) ([]Result, error) {
	results := make([]Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := o.Transcribe(gctx, req.Audio, req.Language, req.Prompt, req.Snapshot)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Request bundles one TranscribeMany item.
type Request struct {
	Audio    []byte
	Language string
	Prompt   string
	Snapshot *lexicon.Snapshot
}
