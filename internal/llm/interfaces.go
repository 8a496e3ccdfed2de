// Package llm provides the reply-generation clients used by the chat
// endpoint. The conversation engine itself never blocks on a model; this
// package consumes the engine's context summary and produces the assistant
// reply that the next turn's extraction will parse.
package llm

import "context"

// TextGenerator is the interface for LLM text completion. Chat prompts are
// single-string completions with the context summary spliced in.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}
