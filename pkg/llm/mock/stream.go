package mock

import (
	"context"
	"strings"

	"github.com/lonestarx1/gogrid/pkg/llm"
)

// Stream implements llm.StreamProvider. It calls Complete (so call
// counting, response sequencing, error injection, delay, and history
// recording all behave identically to the non-streaming path) and replays
// the result as a stream: one Delta per word when the provider was built
// with WithStreamWords, otherwise a single Delta carrying the whole
// content, followed in both cases by a final settlement event carrying
// the assembled Message and Usage.
func (p *Provider) Stream(ctx context.Context, params llm.Params) (llm.Stream, error) {
	resp, err := p.Complete(ctx, params)
	if err != nil {
		return nil, err
	}

	var chunks []string
	if p.streamWords {
		chunks = strings.Fields(resp.Message.Content)
		for i := range chunks {
			if i > 0 {
				chunks[i] = " " + chunks[i]
			}
		}
	}
	if len(chunks) == 0 {
		chunks = []string{resp.Message.Content}
	}

	return &stream{resp: resp, chunks: chunks}, nil
}

type stream struct {
	resp   *llm.Response
	chunks []string
	idx    int
	final  bool
	done   bool
}

func (s *stream) Next() bool {
	if s.done {
		return false
	}
	if s.idx < len(s.chunks) {
		return true
	}
	if !s.final {
		return true
	}
	s.done = true
	return false
}

func (s *stream) Event() llm.StreamEvent {
	if s.idx < len(s.chunks) {
		chunk := s.chunks[s.idx]
		s.idx++
		return llm.StreamEvent{Delta: chunk}
	}
	s.final = true
	msg := s.resp.Message
	usage := s.resp.Usage
	return llm.StreamEvent{Message: &msg, Usage: &usage}
}

func (s *stream) Err() error   { return nil }
func (s *stream) Close() error { return nil }
