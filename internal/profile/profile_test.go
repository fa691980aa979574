package profile

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/docpilot/internal/session"
)

func TestSaveLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	require.False(t, Exists())
	p, err := Load()
	require.NoError(t, err)
	require.Nil(t, p)

	want := &Profile{Name: "Ada", Tags: []string{"infra"}, LLMProvider: "anthropic", RecordCommands: true, ShellPluginShell: "zsh"}
	require.NoError(t, Save(want))
	require.True(t, Exists())

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestApplySeedsMetadata(t *testing.T) {
	p := &Profile{Name: "Ada", Tags: []string{"infra", "k8s"}, LLMProvider: "openai"}
	md := p.Apply(session.DefaultMetadata(), "k8s", " release ", "")

	require.Equal(t, "Ada", md.User)
	require.Equal(t, "openai", md.LLMProvider)
	require.Equal(t, []string{"infra", "k8s", "release"}, md.Tags)
}

func TestApplyWithoutProfile(t *testing.T) {
	var p *Profile
	base := session.DefaultMetadata()
	md := p.Apply(base, "x")
	require.Equal(t, base.User, md.User)
	require.Equal(t, []string{"x"}, md.Tags)
}

func TestRunSetup(t *testing.T) {
	t.Setenv("SHELL", "/bin/bash")
	in := strings.NewReader("Grace\ninfra, docs\n\ny\n\n")
	var out bytes.Buffer

	p, err := RunSetup(in, &out, nil)
	require.NoError(t, err)
	require.Equal(t, "Grace", p.Name)
	require.Equal(t, []string{"infra", "docs"}, p.Tags)
	require.Empty(t, p.LLMProvider)
	require.True(t, p.RecordCommands)
	require.Equal(t, "bash", p.ShellPluginShell)
	require.Contains(t, out.String(), "Your name")
}

func TestRunSetupKeepsExistingDefaults(t *testing.T) {
	existing := &Profile{Name: "Ada", Tags: []string{"a"}, RecordCommands: true, ShellPluginShell: "zsh"}
	in := strings.NewReader("\n\n\nn\n")

	p, err := RunSetup(in, &bytes.Buffer{}, existing)
	require.NoError(t, err)
	require.Equal(t, "Ada", p.Name)
	require.Equal(t, []string{"a"}, p.Tags)
	require.False(t, p.RecordCommands)
	require.Empty(t, p.ShellPluginShell)
}
