package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencode-ai/subagents/internal/logging"
)

const (
	// MaxRetries is the maximum number of retries for stream start failures.
	MaxRetries = 3
	// RetryInitialInterval is the initial interval for exponential backoff.
	RetryInitialInterval = time.Second
	// RetryMaxInterval is the maximum interval for exponential backoff.
	RetryMaxInterval = 30 * time.Second
)

// Streamer resolves model references against a Registry and opens streams.
type Streamer struct {
	registry     *Registry
	defaultModel string

	// NewBackOff builds the retry policy for one Stream call.
	NewBackOff func() backoff.BackOff
}

// NewStreamer creates a streamer. defaultModel is used for requests
// without a model reference and may be empty.
func NewStreamer(registry *Registry, defaultModel string) *Streamer {
	return &Streamer{
		registry:     registry,
		defaultModel: defaultModel,
		NewBackOff:   newRetryBackoff,
	}
}

func newRetryBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithMaxRetries(b, MaxRetries)
}

// Resolve returns the provider and the fully qualified reference for ref.
func (s *Streamer) Resolve(ref string) (Provider, string, error) {
	if ref == "" {
		ref = s.defaultModel
	}
	if ref == "" {
		model, err := s.registry.DefaultModel()
		if err != nil {
			return nil, "", err
		}
		ref = model.ProviderID + "/" + model.ID
	}

	providerID, modelID := ParseModelString(ref)
	if providerID == "" {
		model, err := s.registry.FindModel(modelID)
		if err != nil {
			return nil, "", err
		}
		providerID = model.ProviderID
	}

	p, err := s.registry.Get(providerID)
	if err != nil {
		return nil, "", err
	}
	return p, providerID + "/" + modelID, nil
}

// Stream opens a completion stream. Start failures are retried with
// exponential backoff until the policy gives up or ctx is done.
func (s *Streamer) Stream(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	p, ref, err := s.Resolve(req.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve model: %w", err)
	}

	resolved := *req
	resolved.Model = ref

	var stream *CompletionStream
	attempt := 0
	op := func() error {
		attempt++
		var err error
		stream, err = p.CreateCompletion(ctx, &resolved)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}
		logging.Warn().Err(err).Str("model", ref).Int("attempt", attempt).Msg("Stream start failed")
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(s.NewBackOff(), ctx)); err != nil {
		return nil, err
	}
	return stream, nil
}
