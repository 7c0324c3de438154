package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestFlagCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"flag", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("flag --help failed: %v", err)
	}

	out := buf.String()
	for _, sub := range []string{"create", "list", "resolve"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestFlagCreateCmd_Flags(t *testing.T) {
	cmd := newFlagCreateCmd()
	for _, name := range []string{"discussion", "task", "from-task", "reason", "category", "scenario", "by", "role"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}
	if cmd.Flags().Lookup("category").DefValue != "general" {
		t.Errorf("--category default = %q, want general", cmd.Flags().Lookup("category").DefValue)
	}
}

func TestFlagListCmd_Flags(t *testing.T) {
	cmd := newFlagListCmd()
	all := cmd.Flags().Lookup("all")
	if all == nil {
		t.Fatal("missing --all flag")
	}
	if all.DefValue != "false" {
		t.Errorf("--all default = %q, want unresolved-only by default", all.DefValue)
	}
}
