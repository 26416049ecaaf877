package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	runVersion(versionCmd, nil)

	output := out.String()
	if !strings.Contains(output, "saesadmin version") {
		t.Errorf("expected version banner, got %q", output)
	}
	if !strings.Contains(output, Version) {
		t.Errorf("expected version %q in output, got %q", Version, output)
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	expected := map[string]bool{
		"serve":   false,
		"retire":  false,
		"plan":    false,
		"version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := expected[c.Name()]; ok {
			expected[c.Name()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
