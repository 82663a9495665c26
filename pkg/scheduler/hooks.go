package scheduler

import (
	"context"
	"sync"
)

// HookPoint names a lifecycle point a caller can observe. pre_pipeline and
// pre_stage are awaited and can abort; post_stage and post_pipeline are
// fire-and-forget.
type HookPoint string

const (
	HookPrePipeline  HookPoint = "pre_pipeline"
	HookPreStage     HookPoint = "pre_stage"
	HookPostStage    HookPoint = "post_stage"
	HookPostPipeline HookPoint = "post_pipeline"
)

// Hook is a lifecycle listener. data carries point-specific context (e.g.
// the stage name for pre_stage/post_stage).
type Hook func(ctx context.Context, data map[string]any) error

// HookManager holds the registered listeners per lifecycle point.
type HookManager struct {
	mu       sync.Mutex
	handlers map[HookPoint][]Hook
}

// NewHookManager creates an empty HookManager.
func NewHookManager() *HookManager {
	return &HookManager{handlers: make(map[HookPoint][]Hook)}
}

// On registers a listener for the given hook point.
func (m *HookManager) On(point HookPoint, h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[point] = append(m.handlers[point], h)
}

func (m *HookManager) listeners(point HookPoint) []Hook {
	m.mu.Lock()
	defer m.mu.Unlock()
	hs := m.handlers[point]
	cp := make([]Hook, len(hs))
	copy(cp, hs)
	return cp
}

// RunBlocking awaits every listener registered for point in registration
// order and returns the first error encountered, aborting the remaining
// listeners. A nil HookManager has no listeners and always succeeds.
func RunBlocking(m *HookManager, ctx context.Context, point HookPoint, data map[string]any) error {
	if m == nil {
		return nil
	}
	for _, h := range m.listeners(point) {
		if err := h(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// RunAsync dispatches every listener registered for point without
// awaiting; listener errors are silently dropped. A nil HookManager is a
// no-op.
func RunAsync(m *HookManager, ctx context.Context, point HookPoint, data map[string]any) {
	if m == nil {
		return
	}
	for _, h := range m.listeners(point) {
		go func(h Hook) {
			_ = h(ctx, data)
		}(h)
	}
}
