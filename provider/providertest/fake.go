// Package providertest provides an in-memory provider.Provider for tests.
package providertest

import (
	"context"
	"errors"
	"sync"

	"github.com/mohammad-safakhou/campaigner/provider"
)

// Fake answers Generate calls from a queue of canned replies and records
// every request it receives.
type Fake struct {
	mu       sync.Mutex
	replies  []Reply
	Requests []provider.Request
	// Respond, when set, takes precedence over the queue.
	Respond func(req provider.Request) (provider.Response, error)
	// Vectors is returned by Embed, one per input text, cycling.
	Vectors  [][]float32
	EmbedErr error
}

// Reply is one canned Generate outcome.
type Reply struct {
	Text string
	Err  error
}

// ErrNoReply is returned when the reply queue is exhausted.
var ErrNoReply = errors.New("providertest: no reply queued")

// New returns a Fake that answers with the given texts in order.
func New(texts ...string) *Fake {
	f := &Fake{}
	for _, t := range texts {
		f.replies = append(f.replies, Reply{Text: t})
	}
	return f
}

// Queue appends replies.
func (f *Fake) Queue(r ...Reply) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, r...)
	return f
}

func (f *Fake) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	respond := f.Respond
	var next *Reply
	if respond == nil && len(f.replies) > 0 {
		r := f.replies[0]
		f.replies = f.replies[1:]
		next = &r
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return provider.Response{}, err
	}
	if respond != nil {
		return respond(req)
	}
	if next == nil {
		return provider.Response{}, ErrNoReply
	}
	if next.Err != nil {
		return provider.Response{}, next.Err
	}
	model := req.Model
	if model == "" {
		model = "fake-model"
	}
	return provider.Response{Text: next.Text, Model: model, PromptTokens: 1, CompletionTokens: 1}, nil
}

func (f *Fake) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.EmbedErr != nil {
		return nil, f.EmbedErr
	}
	if len(f.Vectors) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.Vectors[i%len(f.Vectors)]
	}
	return out, nil
}

// Calls returns how many Generate requests were made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}
