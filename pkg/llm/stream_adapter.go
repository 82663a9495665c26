package llm

import "context"

// AsStreamProvider adapts any Provider to StreamProvider. Providers that
// already implement StreamProvider are returned unchanged; all others are
// wrapped so a single non-streaming Complete call is replayed as a
// two-event stream: one delta carrying the full content, then a final
// settlement event carrying the assembled Message and Usage. Callers that
// only ever consume Stream don't need to special-case which providers are
// natively streaming.
func AsStreamProvider(p Provider) StreamProvider {
	if sp, ok := p.(StreamProvider); ok {
		return sp
	}
	return &singleChunkProvider{Provider: p}
}

type singleChunkProvider struct {
	Provider
}

func (s *singleChunkProvider) Stream(ctx context.Context, params Params) (Stream, error) {
	resp, err := s.Complete(ctx, params)
	if err != nil {
		return nil, err
	}
	return &singleChunkStream{resp: resp}, nil
}

// singleChunkStream implements Stream over an already-completed Response:
// step 0 yields the whole content as one Delta, step 1 yields the final
// settlement (Message + Usage), step 2 ends iteration.
type singleChunkStream struct {
	resp *Response
	step int
}

func (s *singleChunkStream) Next() bool {
	if s.step >= 2 {
		return false
	}
	s.step++
	return true
}

func (s *singleChunkStream) Event() StreamEvent {
	switch s.step {
	case 1:
		return StreamEvent{Delta: s.resp.Message.Content}
	case 2:
		msg := s.resp.Message
		usage := s.resp.Usage
		return StreamEvent{Message: &msg, Usage: &usage}
	default:
		return StreamEvent{}
	}
}

func (s *singleChunkStream) Err() error   { return nil }
func (s *singleChunkStream) Close() error { return nil }
