/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package ops

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestRegistry_BasicRegistration(t *testing.T) {
	registry := NewRegistry()
	testCmd := &cobra.Command{Use: "fix <name>...", Short: "Reset paths"}

	if err := registry.Register(GroupMutate, testCmd); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	regs := registry.GetCommandsByGroup(GroupMutate)
	if len(regs) != 1 {
		t.Fatalf("Expected one mutate command after registration, got %d", len(regs))
	}
	cmd := regs[0]
	if cmd.Name != "fix" {
		t.Errorf("Expected command name 'fix', got '%s'", cmd.Name)
	}
	if cmd.Group != GroupMutate {
		t.Errorf("Expected command group 'mutate', got '%s'", cmd.Group)
	}
	if cmd.Description != "Reset paths" {
		t.Errorf("Expected description from Short, got '%s'", cmd.Description)
	}
	if cmd.Command != testCmd {
		t.Error("Expected command object to match registered command")
	}

	if err := registry.Register(GroupSupport, &cobra.Command{Use: "fix"}); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestRegistry_GroupOrder(t *testing.T) {
	registry := NewRegistry()
	for _, use := range []string{"apply", "add", "fix"} {
		if err := registry.Register(GroupMutate, &cobra.Command{Use: use}); err != nil {
			t.Fatal(err)
		}
	}
	got := registry.GetCommandsByGroup(GroupMutate)
	if len(got) != 3 || got[0].Name != "apply" || got[2].Name != "fix" {
		t.Errorf("Expected registration order, got %v", got)
	}
	if len(registry.GetCommandsByGroup(GroupSupport)) != 0 {
		t.Error("Expected empty support group")
	}
}

func TestRegistry_HelpFunc(t *testing.T) {
	root := &cobra.Command{Use: "pbxmend", Long: "pbxmend long help"}
	root.Flags().Bool("no-op", false, "dry run")
	child := &cobra.Command{Use: "inspect", Short: "Show the manifest", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child)

	registry := NewRegistry()
	if err := registry.Register(GroupSupport, child); err != nil {
		t.Fatal(err)
	}
	fallbackCalled := false
	root.SetHelpFunc(registry.HelpFunc(func(*cobra.Command, []string) { fallbackCalled = true }))

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.HelpFunc()(root, nil)
	out := buf.String()
	for _, want := range []string{"pbxmend long help", "Support Commands:", "  inspect      Show the manifest", "--no-op"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Manifest Commands:") {
		t.Error("empty groups should be omitted")
	}

	child.HelpFunc()(child, nil)
	if !fallbackCalled {
		t.Error("Expected subcommand help to use the fallback")
	}
}
