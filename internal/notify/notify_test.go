package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quorumhq/quorum/internal/models"
	"github.com/quorumhq/quorum/internal/statusfix"
)

type fakeAdapter struct {
	sent   []Event
	err    error
	closed bool
}

func (f *fakeAdapter) Send(ctx context.Context, ev Event) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func TestNotifier_FanOut(t *testing.T) {
	a, b := &fakeAdapter{}, &fakeAdapter{}
	n := New(a, nil, b)

	n.Send(context.Background(), Event{Title: "hello"})
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Errorf("sent = %d/%d, want 1/1", len(a.sent), len(b.sent))
	}

	n.Close()
	if !a.closed || !b.closed {
		t.Error("adapters not closed")
	}
}

func TestNotifier_FailureDoesNotBlockOthers(t *testing.T) {
	bad := &fakeAdapter{err: errors.New("rate limited")}
	good := &fakeAdapter{}
	n := New(bad, good)

	n.Send(context.Background(), Event{Title: "hello"})
	if len(good.sent) != 1 {
		t.Errorf("healthy adapter got %d events, want 1", len(good.sent))
	}
}

func TestFlagEvent(t *testing.T) {
	flag := &models.Flag{
		DiscussionID:      "d1",
		TaskID:            1,
		Category:          "workflow_misrouting",
		WorkflowScenario:  "stop_at_task1",
		FlaggedFromTaskID: 3,
		FlaggedBy:         "lead1",
		FlaggedByRole:     "pod_lead",
		Reason:            "first response answers the question completely",
	}
	ev := FlagEvent(flag)
	if !strings.Contains(ev.Title, "d1") || !strings.Contains(ev.Title, "task 1") {
		t.Errorf("Title = %q", ev.Title)
	}
	if ev.Body != flag.Reason {
		t.Errorf("Body = %q", ev.Body)
	}
	if ev.Severity != "warning" {
		t.Errorf("Severity = %q", ev.Severity)
	}

	names := make(map[string]string)
	for _, f := range ev.Fields {
		names[f.Name] = f.Value
	}
	if names["Category"] != "workflow_misrouting" {
		t.Errorf("fields = %v", names)
	}
	if names["Scenario"] != "stop_at_task1" {
		t.Errorf("fields = %v", names)
	}
	if names["Reported from"] != "task 3" {
		t.Errorf("fields = %v", names)
	}
	if !strings.Contains(names["Filed by"], "lead1") {
		t.Errorf("fields = %v", names)
	}
}

func TestFlagEvent_MinimalFlag(t *testing.T) {
	ev := FlagEvent(&models.Flag{DiscussionID: "d1", TaskID: 2, Category: "general", Reason: "r"})
	for _, f := range ev.Fields {
		if f.Name == "Scenario" || f.Name == "Reported from" {
			t.Errorf("unexpected field %q on a minimal flag", f.Name)
		}
	}
}

func TestStatusFixEvent(t *testing.T) {
	result := &statusfix.Result{
		UpdatedDiscussions: 2,
		Summary: statusfix.Summary{
			Analyzed:             10,
			Updated:              3,
			Transitions:          map[string]int{"unlocked->ready_for_consensus": 2, "locked->unlocked": 1},
			ReworkTasksPreserved: 1,
		},
	}
	ev := StatusFixEvent(result)
	if !strings.Contains(ev.Title, "apply") || !strings.Contains(ev.Title, "3 updates") {
		t.Errorf("Title = %q", ev.Title)
	}
	if ev.Severity != "info" {
		t.Errorf("Severity = %q", ev.Severity)
	}

	// transition fields come after the fixed counters, sorted by name
	var transitions []string
	for _, f := range ev.Fields {
		if strings.Contains(f.Name, "->") {
			transitions = append(transitions, f.Name)
		}
	}
	if len(transitions) != 2 || transitions[0] != "locked->unlocked" {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestStatusFixEvent_DryRunAndErrors(t *testing.T) {
	result := &statusfix.Result{
		DryRun: true,
		Errors: []string{"d9: missing slot"},
		Summary: statusfix.Summary{
			Transitions: map[string]int{},
		},
	}
	ev := StatusFixEvent(result)
	if !strings.Contains(ev.Title, "preview") {
		t.Errorf("Title = %q", ev.Title)
	}
	if ev.Severity != "error" {
		t.Errorf("Severity = %q, want error when the run recorded errors", ev.Severity)
	}
}
