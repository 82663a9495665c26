package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lonestarx1/gogrid/pkg/llm"
	"github.com/lonestarx1/gogrid/pkg/llm/mock"
	"github.com/lonestarx1/gogrid/pkg/memory"
	"github.com/lonestarx1/gogrid/pkg/permission"
	"github.com/lonestarx1/gogrid/pkg/scheduler"
	"github.com/lonestarx1/gogrid/pkg/skill"
)

type fixedProviders struct{ provider llm.Provider }

func (f fixedProviders) ProviderFor(modelID string) (llm.Provider, bool) { return f.provider, true }
func (f fixedProviders) HasCredentials(modelID string) bool             { return true }
func (f fixedProviders) DefaultModel() (string, bool)                   { return "mock-model", true }

func testSkill(name string) *skill.Skill {
	stages := []skill.Stage{{Name: "gather", Prompt: "Gather facts."}}
	levels, _ := skill.ComputeExecutionLevels(stages)
	return &skill.Skill{
		Document: skill.Document{
			Name:   name,
			Stages: stages,
			Output: skill.Output{Primary: "gather"},
		},
		Levels: levels,
	}
}

// pricedTestSkill is a one-stage skill whose stage names a real-priced
// model and token ceiling, so EstimatePipelineCost produces a non-zero
// estimate (compiledDefaults deliberately leave Model unset).
func pricedTestSkill(name, model string, maxTokens int) *skill.Skill {
	sk := testSkill(name)
	sk.Stages[0].Model = model
	sk.Stages[0].MaxTokens = maxTokens
	levels, _ := skill.ComputeExecutionLevels(sk.Stages)
	sk.Levels = levels
	return sk
}

func basePC(provider llm.Provider) scheduler.PipelineContext {
	return scheduler.PipelineContext{
		Providers: fixedProviders{provider: provider},
	}
}

// S4: an approval-required run above the threshold, declined, is cancelled
// without ever invoking the model.
func TestSessionRunPipelineApprovalDeclinedCancelsWithoutRunning(t *testing.T) {
	provider := mock.New()
	sess := New(Config{
		ApprovalThresholdUsd: 0.0001,
		OnApprovalRequired:   func(estimate float64) bool { return false },
	}, nil)

	sk := pricedTestSkill("analysis", "claude-opus-4-6-20250827", 10_000)
	loadSkill := func(name string) (*scheduler.SkillEntry, error) {
		return &scheduler.SkillEntry{Skill: sk}, nil
	}

	result := sess.RunPipeline(context.Background(), basePC(provider), RunPipelineRequest{SkillName: "analysis"}, loadSkill)

	require.True(t, result.Cancelled)
	assert.Equal(t, "User declined", result.Reason)
	assert.Nil(t, result.Completed)
	assert.Empty(t, result.Error)
	assert.Equal(t, 0, provider.Calls(), "a declined approval must never invoke the model")
	assert.Equal(t, 0.0, sess.SpentUsd())
}

// S5: a session budget below the estimated cost refuses the run before the
// engine starts, with the exact "Session spent: $X.XXXX of $Y.YY" wording.
func TestSessionRunPipelineSessionBudgetExceededRefusesBeforeStarting(t *testing.T) {
	provider := mock.New()
	sess := New(Config{
		SessionBudgetUsd:     10,
		ApprovalThresholdUsd: -1, // disable the approval gate for this test
	}, nil)
	sess.spentUsd = 8

	// claude-opus-4-6-20250827 costs $25/1M completion tokens; 200,000
	// tokens at that rate estimates to exactly $5, matching the spec's S5
	// scenario (estimated cost $5 against $8 of $10 already spent).
	sk := pricedTestSkill("analysis", "claude-opus-4-6-20250827", 200_000)

	loadSkill := func(name string) (*scheduler.SkillEntry, error) {
		return &scheduler.SkillEntry{Skill: sk}, nil
	}

	result := sess.RunPipeline(context.Background(), basePC(provider), RunPipelineRequest{SkillName: "analysis"}, loadSkill)

	require.NotEmpty(t, result.Error)
	assert.Contains(t, result.Error, "exceeds remaining session budget")
	assert.Contains(t, result.Error, "Session spent: $8.0000 of $10.00")
	assert.Equal(t, 0, provider.Calls())
}

func TestSessionRunPipelineSuccessAccumulatesSpend(t *testing.T) {
	provider := mock.New(mock.WithFallback(&llm.Response{
		Message: llm.NewAssistantMessage("done"),
		Usage:   llm.Usage{PromptTokens: 100, CompletionTokens: 100, TotalTokens: 200},
	}))
	sess := New(Config{SessionBudgetUsd: 100, ApprovalThresholdUsd: -1}, nil)

	sk := testSkill("analysis")
	loadSkill := func(name string) (*scheduler.SkillEntry, error) {
		return &scheduler.SkillEntry{Skill: sk}, nil
	}

	result := sess.RunPipeline(context.Background(), basePC(provider), RunPipelineRequest{SkillName: "analysis"}, loadSkill)

	require.NotNil(t, result.Completed)
	assert.Equal(t, "done", result.Completed.PrimaryOutput)
	assert.Equal(t, 1, provider.Calls())
}

func TestSessionRunPipelineUnknownSkillIsError(t *testing.T) {
	sess := New(Config{}, nil)
	loadSkill := func(name string) (*scheduler.SkillEntry, error) {
		return nil, errors.New("not found on disk")
	}
	result := sess.RunPipeline(context.Background(), basePC(mock.New()), RunPipelineRequest{SkillName: "missing"}, loadSkill)
	assert.Contains(t, result.Error, "missing")
}

func TestSessionActivateSkillReturnsShape(t *testing.T) {
	sess := New(Config{}, nil)
	sk := testSkill("analysis")
	sk.Inputs = []skill.Input{{Name: "ticker", Type: skill.InputString, Required: true}}
	loadSkill := func(name string) (*scheduler.SkillEntry, error) {
		return &scheduler.SkillEntry{Skill: sk}, nil
	}

	info, err := sess.ActivateSkill("analysis", loadSkill)
	require.NoError(t, err)
	assert.Equal(t, "analysis", info.Name)
	assert.Equal(t, []string{"gather"}, info.Stages)
	require.Len(t, info.Inputs, 1)
	assert.Equal(t, "ticker", info.Inputs[0].Name)
}

type memConfigStore struct{ data map[string]any }

func (m *memConfigStore) Get(key string) (any, bool) { v, ok := m.data[key]; return v, ok }
func (m *memConfigStore) Set(key string, value any) error {
	m.data[key] = value
	return nil
}

// S6: manage_config{action:"set"} is refused in read-only mode; "get" is
// unaffected.
func TestSessionManageConfigSetBlockedInReadOnlyMode(t *testing.T) {
	sess := New(Config{ReadOnly: permission.NewReadOnlyMode([]string{"market_data"})}, nil)
	store := &memConfigStore{data: map[string]any{"theme": "dark"}}

	setResult := sess.ManageConfig(store, "set", "theme", "light")
	require.NotEmpty(t, setResult.Error)
	assert.Contains(t, setResult.Error, "read-only mode")
	assert.Equal(t, "dark", store.data["theme"], "the blocked set must not mutate the store")

	getResult := sess.ManageConfig(store, "get", "theme", nil)
	assert.Empty(t, getResult.Error)
	assert.Equal(t, "dark", getResult.Value)
}

// manage_config against pkg/memory.KVStore, the default host-supplied
// ConfigStore backing, rather than a test-only stand-in.
func TestSessionManageConfigWorksAgainstMemoryKVStore(t *testing.T) {
	sess := New(Config{}, nil)
	store := memory.NewKVStore(map[string]any{"theme": "dark"})

	setResult := sess.ManageConfig(store, "set", "theme", "light")
	assert.Empty(t, setResult.Error)

	getResult := sess.ManageConfig(store, "get", "theme", nil)
	assert.Empty(t, getResult.Error)
	assert.Equal(t, "light", getResult.Value)
}

// manage_config against a read-only-wrapped KVStore, matching how a host
// would actually compose read-only mode with its config backend.
func TestSessionManageConfigSetBlockedAgainstReadOnlyMemoryKVStore(t *testing.T) {
	sess := New(Config{}, nil)
	store := memory.NewReadOnlyKVStore(memory.NewKVStore(map[string]any{"theme": "dark"}))

	result := sess.ManageConfig(store, "set", "theme", "light")
	require.NotEmpty(t, result.Error)
	assert.Contains(t, result.Error, memory.ErrReadOnly.Error())
}

func TestSessionManageConfigSetAllowedOutsideReadOnlyMode(t *testing.T) {
	sess := New(Config{}, nil)
	store := &memConfigStore{data: map[string]any{}}

	result := sess.ManageConfig(store, "set", "theme", "light")
	assert.Empty(t, result.Error)
	assert.Equal(t, "light", store.data["theme"])
}

// S6: read-only mode excludes run_pipeline, activate_skill, and MCP tools
// from the exposed catalog, keeping only the explicit allow-list.
func TestSessionExposedToolsFiltersToAllowListInReadOnlyMode(t *testing.T) {
	sess := New(Config{ReadOnly: permission.NewReadOnlyMode([]string{"market_data/get_quote"})}, nil)

	catalog := []string{"run_pipeline", "activate_skill", "manage_config", "market_data/get_quote", "search/lookup"}
	exposed := sess.ExposedTools(catalog)

	assert.Equal(t, []string{"market_data/get_quote"}, exposed)
}

func TestSessionExposedToolsUnfilteredOutsideReadOnlyMode(t *testing.T) {
	sess := New(Config{}, nil)
	catalog := []string{"run_pipeline", "activate_skill", "manage_config"}
	assert.Equal(t, catalog, sess.ExposedTools(catalog))
}
