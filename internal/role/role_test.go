package role

import (
	"strings"
	"testing"
)

func TestLookupKnownRoles(t *testing.T) {
	for _, name := range []Name{Planner, Researcher, Editor} {
		def, ok := Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%s) not found", name)
		}
		if def.Name != name {
			t.Fatalf("definition name mismatch: %s vs %s", def.Name, name)
		}
		if def.Instructions == "" {
			t.Fatalf("role %s has no instructions", name)
		}
	}
	if _, ok := Lookup("triage"); ok {
		t.Fatalf("unknown role must not resolve")
	}
}

func TestCapabilityAllowlist(t *testing.T) {
	researcher, _ := Lookup(Researcher)
	if !researcher.Allowed(CapabilityWebSearch) || !researcher.Allowed(CapabilityRecordFact) {
		t.Fatalf("researcher must hold both capabilities: %+v", researcher.Capabilities)
	}
	planner, _ := Lookup(Planner)
	if planner.Allowed(CapabilityWebSearch) || planner.Allowed(CapabilityRecordFact) {
		t.Fatalf("planner must hold no capabilities")
	}
	editor, _ := Lookup(Editor)
	if editor.Allowed(CapabilityRecordFact) {
		t.Fatalf("editor must hold no capabilities")
	}
}

func TestHandoffTargets(t *testing.T) {
	planner, _ := Lookup(Planner)
	if !planner.CanHandoff(Researcher) || !planner.CanHandoff(Editor) {
		t.Fatalf("planner must be able to hand off to researcher and editor")
	}
	if planner.CanHandoff(Planner) {
		t.Fatalf("planner must not hand off to itself")
	}
	researcher, _ := Lookup(Researcher)
	if researcher.CanHandoff(Editor) {
		t.Fatalf("researcher holds no handoff targets")
	}
}

func TestOutputSchemaBinding(t *testing.T) {
	planner, _ := Lookup(Planner)
	if planner.Output != SchemaPlan {
		t.Fatalf("planner output schema: %s", planner.Output)
	}
	researcher, _ := Lookup(Researcher)
	if researcher.Output != SchemaNone {
		t.Fatalf("researcher emits free text, got %s", researcher.Output)
	}
	editor, _ := Lookup(Editor)
	if editor.Output != SchemaReport {
		t.Fatalf("editor output schema: %s", editor.Output)
	}
}

func TestPlannerInstructionsDocumentBounds(t *testing.T) {
	planner, _ := Lookup(Planner)
	if !strings.Contains(planner.Instructions, "3-5") {
		t.Fatalf("planner instructions must document the 3-5 bound")
	}
}
