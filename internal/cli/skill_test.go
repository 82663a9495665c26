package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lonestarx1/gogrid/pkg/llm"
)

func writeTestSkillFile(t *testing.T, dir, name string) string {
	t.Helper()
	yaml := `name: ` + name + `
description: Gathers a quick fact.
stages:
  - name: gather
    prompt: "Gather facts about {topic}."
    model: gpt-4.1
output:
  primary: gather
`
	path := filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunSkill_Success(t *testing.T) {
	dir := t.TempDir()
	writeTestSkillFile(t, dir, "quickfact")

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.SetProviderFactory(newMockFactory("the answer"))

	code := app.runSkill([]string{"run", "-skills-dir", dir, "-input", "topic=gophers", "quickfact"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "the answer") {
		t.Errorf("expected model output in stdout, got: %s", stdout.String())
	}
}

func TestRunSkill_UnknownSkill(t *testing.T) {
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.SetProviderFactory(newMockFactory(""))

	code := app.runSkill([]string{"run", "-skills-dir", dir, "nonexistent"})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "not found") {
		t.Errorf("expected not-found error, got: %s", stderr.String())
	}
}

func TestRunSkill_NoSkillName(t *testing.T) {
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runSkill([]string{"run", "-skills-dir", dir})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestRunSkill_MissingRunSubcommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runSkill([]string{})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Usage") {
		t.Errorf("expected usage message, got: %s", stderr.String())
	}
}

func TestRunSkill_BadInputFlag(t *testing.T) {
	dir := t.TempDir()
	writeTestSkillFile(t, dir, "quickfact")

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.SetProviderFactory(newMockFactory(""))

	code := app.runSkill([]string{"run", "-skills-dir", dir, "-input", "notkeyvalue", "quickfact"})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "expected key=value") {
		t.Errorf("expected key=value parse error, got: %s", stderr.String())
	}
}

func TestRunSkill_MissingCredentialsSurfacesError(t *testing.T) {
	dir := t.TempDir()
	writeTestSkillFile(t, dir, "quickfact")

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)
	app.SetProviderFactory(newFailingFactory("OPENAI_API_KEY is not set"))

	code := app.runSkill([]string{"run", "-skills-dir", dir, "-input", "topic=gophers", "quickfact"})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestModelProviderName(t *testing.T) {
	cases := map[string]string{
		"claude-sonnet-4-5-20250929": "anthropic",
		"gpt-4.1":                    "openai",
		"o3-mini":                    "openai",
		"gemini-2.5-pro":             "gemini",
		"unknown-model":              "",
	}
	for model, want := range cases {
		if got := modelProviderName(model); got != want {
			t.Errorf("modelProviderName(%q) = %q, want %q", model, got, want)
		}
	}
}

func TestCLIProvidersDefaultModelPrefersAnthropicThenOpenAIThenGemini(t *testing.T) {
	factory := func(_ context.Context, name string) (llm.Provider, error) {
		if name == "gemini" {
			return &mockProvider{}, nil
		}
		return nil, os.ErrNotExist
	}
	p := newCLIProviders(context.Background(), factory)

	model, ok := p.DefaultModel()
	if !ok {
		t.Fatal("DefaultModel ok = false, want true")
	}
	if model != "gemini-2.5-pro" {
		t.Errorf("DefaultModel = %q, want %q", model, "gemini-2.5-pro")
	}
}
