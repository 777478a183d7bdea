// Package provider adapts LLM backends to the streaming completion used by
// delegated sub-agent runs.
//
// Backends are built on the Eino framework: Anthropic Claude, OpenAI (and
// OpenAI-compatible endpoints) and Volcengine ARK. Each is exposed through
// the Provider interface and collected in a Registry.
//
// # Model references
//
// Models are named "provider/model", for example
// "anthropic/claude-sonnet-4-20250514". A bare model ID is matched against
// every registered provider's catalog.
//
// # Streaming
//
// Streamer resolves a reference and opens a CompletionStream, retrying
// transient start failures with exponential backoff:
//
//	streamer := provider.NewStreamer(registry, cfg.Model)
//	stream, err := streamer.Stream(ctx, &provider.CompletionRequest{
//		Messages: []*schema.Message{schema.UserMessage("hello")},
//	})
//	if err != nil {
//		return err
//	}
//	defer stream.Close()
//
// Chunks are read with Recv until io.EOF.
package provider
