package flowstate

import (
	"errors"
	"testing"
)

func TestFlowBuilder_BuildValidDefinition(t *testing.T) {
	def, err := NewFlow("checkout").
		Step("cart", "shipping").
		Step("shipping", "payment").
		Choice("payment", "card", "invoice").
		Step("card", "done").
		Step("invoice", "done").
		Terminal("done").
		Version("2").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if def.ID != "checkout" || def.Version != "2" {
		t.Fatalf("unexpected definition header: %+v", def)
	}
	if def.Start != "cart" {
		t.Fatalf("first step should become start, got %q", def.Start)
	}
	if len(def.Steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(def.Steps))
	}
	payment, ok := def.Step("payment")
	if !ok || !payment.IsBranch() || len(payment.NextOneOf) != 2 {
		t.Fatalf("branch step lost its options: %+v", payment)
	}
	done, _ := def.Step("done")
	if !done.IsTerminal() {
		t.Fatalf("terminal step has outgoing transitions: %+v", done)
	}
}

func TestFlowBuilder_ExplicitStart(t *testing.T) {
	def, err := NewFlow("resume").
		Step("intro", "body").
		Step("body", "end").
		Terminal("end").
		Start("body").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if def.Start != "body" {
		t.Fatalf("explicit start not honored, got %q", def.Start)
	}
}

func TestFlowBuilder_BuildReportsAllIssues(t *testing.T) {
	_, err := NewFlow("broken").
		Step("a", "missing-1").
		Step("b", "missing-2").
		Build()
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	if len(ve.Issues) != 2 {
		t.Fatalf("expected both broken references reported, got %v", ve.Issues)
	}
}

func TestFlowBuilder_DuplicateStepPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate step id")
		}
	}()
	NewFlow("dup").Step("a", "b").Step("a", "c")
}

func TestFlowBuilder_EmptyStepIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on empty step id")
		}
	}()
	NewFlow("empty").Terminal("")
}

func TestFlowBuilder_MustBuildPanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected MustBuild panic")
		}
	}()
	NewFlow("bad").Step("a", "nowhere").MustBuild()
}

func TestFlowBuilder_VariantStampsDefinition(t *testing.T) {
	def := NewFlow("survey").
		Step("q1", "end").
		Terminal("end").
		Variant("short-form").
		MustBuild()
	if def.VariantID != "short-form" {
		t.Fatalf("variant not stamped: %+v", def)
	}
}
