package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/lonestarx1/gogrid/pkg/llm"
	"github.com/lonestarx1/gogrid/pkg/scheduler"
	"github.com/lonestarx1/gogrid/pkg/scheduler/event"
	"github.com/lonestarx1/gogrid/pkg/session"
	"github.com/lonestarx1/gogrid/pkg/skill"
)

// runSkill implements "gogrid skill run <name> [-input k=v]...", the one
// future subcommand SPEC_FULL.md's ambient-stack notes anticipate: it
// follows the same App{stdout, stderr, providerFactory} shape run.go
// already established, but drives a skill pipeline through pkg/session
// instead of a single gogrid.yaml agent.
func (a *App) runSkill(args []string) int {
	if len(args) == 0 || args[0] != "run" {
		a.errf("Usage: gogrid skill run <name> [-input key=value]... [-skills-dir dir]\n")
		return 1
	}

	fs := flag.NewFlagSet("skill run", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	skillsDir := fs.String("skills-dir", "skills", "directory containing *.yaml skill documents")
	budget := fs.Float64("budget", 0, "session budget in USD (0 = unlimited)")
	var inputFlags stringSliceFlag
	fs.Var(&inputFlags, "input", "input key=value pair (repeatable)")

	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	if fs.NArg() == 0 {
		a.errf("Usage: gogrid skill run <name> [-input key=value]...\n")
		return 1
	}
	skillName := fs.Arg(0)

	inputs, err := parseInputFlags(inputFlags)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	loader := skill.NewLoader(*skillsDir, "", nil)
	loadSkill := func(name string) (*scheduler.SkillEntry, error) {
		sk, err := loader.ByName(name)
		if err != nil {
			return nil, err
		}
		if sk == nil {
			return nil, fmt.Errorf("skill %q not found in %s", name, *skillsDir)
		}
		return &scheduler.SkillEntry{Skill: sk}, nil
	}

	providers := newCLIProviders(ctx, a.providerFactory)
	sess := session.New(session.Config{
		SessionBudgetUsd:     *budget,
		ApprovalThresholdUsd: -1, // the CLI has no interactive confirmation loop; run.go's subcommands are non-interactive already
		MaxConcurrency:       scheduler.DefaultMaxConcurrency,
	}, nil)

	pc := scheduler.PipelineContext{
		Providers: providers,
	}

	result := sess.RunPipeline(ctx, pc, session.RunPipelineRequest{SkillName: skillName, Inputs: inputs}, loadSkill)

	switch {
	case result.Error != "":
		a.errf("Error: %s\n", result.Error)
		return 1
	case result.Cancelled:
		a.errf("Cancelled: %s\n", result.Reason)
		return 1
	case result.Completed != nil:
		a.printPipelineResult(result.Completed)
		if result.Completed.Partial {
			return 1
		}
		return 0
	default:
		a.errf("Error: run_pipeline returned neither a result, a cancellation, nor an error\n")
		return 1
	}
}

func (a *App) printPipelineResult(payload *event.PipelineCompletePayload) {
	a.outf("%s\n", payload.PrimaryOutput)
	if payload.Partial {
		a.errf("\nPartial result: %d stage(s) completed, failed: %v, skipped: %v\n",
			payload.StagesCompleted, payload.FailedStages, payload.SkippedStages)
	}
}

// parseInputFlags turns repeated "key=value" flags into the map
// scheduler.PipelineContext.Inputs expects. Values are kept as strings
// and are not converted to the skill's declared input types
// (skill.Input.Type); substitution renders them as given.
func parseInputFlags(pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid -input %q, expected key=value", p)
		}
		inputs[k] = v
	}
	return inputs, nil
}

// stringSliceFlag implements flag.Value for a repeatable string flag.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ",") }
func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// cliProviders resolves a scheduler model id to one of the CLI's three
// configured LLM providers by name-prefix convention, reusing the same
// ProviderFactory run.go resolves agents' configured provider name
// through -- the only difference is the provider name comes from a model
// id prefix instead of gogrid.yaml's explicit per-agent field.
type cliProviders struct {
	ctx     context.Context
	factory ProviderFactory
	cache   map[string]llm.Provider
}

func newCLIProviders(ctx context.Context, factory ProviderFactory) *cliProviders {
	return &cliProviders{ctx: ctx, factory: factory, cache: make(map[string]llm.Provider)}
}

var modelPricingOrder = []string{"anthropic", "openai", "gemini"}

func modelProviderName(modelID string) string {
	switch {
	case strings.HasPrefix(modelID, "claude-"):
		return "anthropic"
	case strings.HasPrefix(modelID, "gpt-"), strings.HasPrefix(modelID, "o3"), strings.HasPrefix(modelID, "o4-"):
		return "openai"
	case strings.HasPrefix(modelID, "gemini-"):
		return "gemini"
	default:
		return ""
	}
}

func defaultModelForProvider(name string) string {
	switch name {
	case "anthropic":
		return "claude-sonnet-4-5-20250929"
	case "openai":
		return "gpt-4.1"
	case "gemini":
		return "gemini-2.5-pro"
	default:
		return ""
	}
}

func (p *cliProviders) resolve(name string) (llm.Provider, bool) {
	if name == "" {
		return nil, false
	}
	if pr, ok := p.cache[name]; ok {
		return pr, true
	}
	pr, err := p.factory(p.ctx, name)
	if err != nil {
		return nil, false
	}
	p.cache[name] = pr
	return pr, true
}

func (p *cliProviders) ProviderFor(modelID string) (llm.Provider, bool) {
	return p.resolve(modelProviderName(modelID))
}

func (p *cliProviders) HasCredentials(modelID string) bool {
	_, ok := p.ProviderFor(modelID)
	return ok
}

func (p *cliProviders) DefaultModel() (string, bool) {
	for _, name := range modelPricingOrder {
		if _, ok := p.resolve(name); ok {
			return defaultModelForProvider(name), true
		}
	}
	return "", false
}
