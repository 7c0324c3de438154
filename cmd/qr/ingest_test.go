package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestIngestCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"ingest", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("ingest --help failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "JSONL") {
		t.Errorf("expected help to mention JSONL, got: %s", out)
	}
	for _, flag := range []string{"--file", "--enrich"} {
		if !strings.Contains(out, flag) {
			t.Errorf("expected %s flag, got: %s", flag, out)
		}
	}
}

func TestDBCmd_Help(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"db", "--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("db --help failed: %v", err)
	}

	out := buf.String()
	for _, sub := range []string{"init", "reset"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestDBResetCmd_RequiresForce(t *testing.T) {
	cmd := newDBResetCmd()
	force := cmd.Flags().Lookup("force")
	if force == nil {
		t.Fatal("missing --force flag")
	}
	if force.DefValue != "false" {
		t.Errorf("--force default = %q, reset must not run unconfirmed", force.DefValue)
	}
}
