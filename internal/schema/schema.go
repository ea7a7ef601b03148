package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceUnspecified is recorded when a fact arrives without an attributed source.
const SourceUnspecified = "unspecified"

// ResearchPlan is the structured output of the planner role. It is produced
// once per session and never mutated afterwards.
type ResearchPlan struct {
	Topic         string   `json:"topic"`
	SearchQueries []string `json:"search_queries"`
	FocusAreas    []string `json:"focus_areas"`
}

// ResearchReport is the structured output of the editor role.
type ResearchReport struct {
	Title     string   `json:"title"`
	Outline   []string `json:"outline"`
	Report    string   `json:"report"`
	Sources   []string `json:"sources"`
	WordCount int      `json:"word_count"`
}

// Fact is a single discovery recorded during the research stage.
type Fact struct {
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ResultKind discriminates the final result union.
type ResultKind string

const (
	ResultReport   ResultKind = "report"
	ResultDegraded ResultKind = "degraded"
)

// Result is what a session ends with: either a schema-conformant report or a
// degraded textual substitute. Callers must check Kind before reading fields.
type Result struct {
	Kind   ResultKind      `json:"kind"`
	Report *ResearchReport `json:"report,omitempty"`
	Raw    string          `json:"raw,omitempty"`
}

// Text returns the user-presentable body regardless of kind.
func (r Result) Text() string {
	if r.Kind == ResultReport && r.Report != nil {
		return r.Report.Report
	}
	return r.Raw
}

// ValidationError describes a structural mismatch between a raw payload and
// the expected contract. It never escapes as a panic.
type ValidationError struct {
	Schema string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s: %s", e.Schema, e.Field, e.Reason)
}

// DecodePlan parses and structurally validates a research plan payload.
func DecodePlan(raw []byte) (ResearchPlan, error) {
	var plan ResearchPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return ResearchPlan{}, &ValidationError{Schema: "research_plan", Field: "(document)", Reason: err.Error()}
	}
	if strings.TrimSpace(plan.Topic) == "" {
		return ResearchPlan{}, &ValidationError{Schema: "research_plan", Field: "topic", Reason: "missing or empty"}
	}
	if len(plan.SearchQueries) == 0 {
		return ResearchPlan{}, &ValidationError{Schema: "research_plan", Field: "search_queries", Reason: "missing or empty"}
	}
	if len(plan.FocusAreas) == 0 {
		return ResearchPlan{}, &ValidationError{Schema: "research_plan", Field: "focus_areas", Reason: "missing or empty"}
	}
	return plan, nil
}

// PlanAdvisories returns non-fatal warnings for a plan. The instructions ask
// for 3-5 queries and focus areas but the bound is advisory: a plan outside it
// is still accepted.
func PlanAdvisories(plan ResearchPlan) []string {
	var advisories []string
	if n := len(plan.SearchQueries); n < 3 || n > 5 {
		advisories = append(advisories, fmt.Sprintf("search_queries has %d items, instructions ask for 3-5", n))
	}
	if n := len(plan.FocusAreas); n < 3 || n > 5 {
		advisories = append(advisories, fmt.Sprintf("focus_areas has %d items, instructions ask for 3-5", n))
	}
	return advisories
}

// DecodeReport parses and structurally validates a research report payload.
func DecodeReport(raw []byte) (ResearchReport, error) {
	var report ResearchReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return ResearchReport{}, &ValidationError{Schema: "research_report", Field: "(document)", Reason: err.Error()}
	}
	if strings.TrimSpace(report.Title) == "" {
		return ResearchReport{}, &ValidationError{Schema: "research_report", Field: "title", Reason: "missing or empty"}
	}
	if strings.TrimSpace(report.Report) == "" {
		return ResearchReport{}, &ValidationError{Schema: "research_report", Field: "report", Reason: "missing or empty"}
	}
	if report.WordCount < 0 {
		return ResearchReport{}, &ValidationError{Schema: "research_report", Field: "word_count", Reason: "must be >= 0"}
	}
	return report, nil
}

// NewFact normalizes a raw fact, defaulting the source when absent.
func NewFact(text, source string, at time.Time) Fact {
	if strings.TrimSpace(source) == "" {
		source = SourceUnspecified
	}
	return Fact{Text: text, Source: source, RecordedAt: at}
}
