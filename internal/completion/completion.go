// Package completion is the boundary to the external completion engine. A
// stage run yields a stream of typed events: zero or more capability
// invocations and handoff requests, then exactly one terminal event
// (structured result, raw text, or fault). Capability effects are emitted
// eagerly, so facts land in the fact store before the stage's final text is
// available.
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jatanrathod13/researcher/internal/role"
	"github.com/jatanrathod13/researcher/internal/schema"
)

// Message is one entry in the accumulated transcript of a session.
type Message struct {
	Origin  string `json:"origin"` // "user" or a role name
	Content string `json:"content"`
}

// Transcript is the ordered accumulation of all messages exchanged across
// stages within a session.
type Transcript []Message

// Append returns a new transcript with msg added; the receiver is unchanged.
func (t Transcript) Append(origin, content string) Transcript {
	out := make(Transcript, len(t), len(t)+1)
	copy(out, t)
	return append(out, Message{Origin: origin, Content: content})
}

// Render flattens the transcript for inclusion in a prompt.
func (t Transcript) Render() string {
	var b strings.Builder
	for _, m := range t {
		b.WriteString("[")
		b.WriteString(m.Origin)
		b.WriteString("]\n")
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

// RecoverableText concatenates role-authored content, used when degrading a
// failed structured stage to whatever prose the transcript already holds.
func (t Transcript) RecoverableText() string {
	var parts []string
	for _, m := range t {
		if m.Origin != "user" && strings.TrimSpace(m.Content) != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// EventKind discriminates the event union.
type EventKind string

const (
	EventCapability EventKind = "capability"
	EventHandoff    EventKind = "handoff"
	EventStructured EventKind = "structured"
	EventRawText    EventKind = "raw_text"
	EventFault      EventKind = "fault"
)

// CapabilityCall describes one capability invocation performed during a stage.
type CapabilityCall struct {
	Name role.Capability
	Args map[string]any
	Fact *schema.Fact // set for record_fact invocations
}

// Handoff is a request to pass the accumulated transcript to another role.
type Handoff struct {
	Target     role.Name
	Transcript Transcript
}

// Event is one element of a stage's event stream. Exactly one of the payload
// fields is set, matching Kind.
type Event struct {
	Kind       EventKind
	Capability *CapabilityCall
	Handoff    *Handoff
	Structured json.RawMessage
	Raw        string
	Err        error
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	switch e.Kind {
	case EventStructured, EventRawText, EventFault:
		return true
	}
	return false
}

// Request is one stage invocation.
type Request struct {
	Role          role.Name
	Transcript    Transcript
	CorrelationID string
	// Plan drives researcher fan-out: one web search per plan query.
	Plan *schema.ResearchPlan
	// Facts is the session fact store targeted by record_fact.
	Facts FactRecorder
}

// FactRecorder is the slice of the fact store the adapter needs.
type FactRecorder interface {
	Record(text, source string) schema.Fact
}

// Service runs one role stage and streams its events. The returned channel is
// closed after the terminal event. Implementations must honor ctx cancellation
// at every awaited point.
type Service interface {
	Run(ctx context.Context, req Request) (<-chan Event, error)
}

// CapabilityError indicates a tool call failed; the stage continues with
// partial information.
type CapabilityError struct {
	Capability role.Capability
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s failed: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// TransportError indicates the completion call itself could not complete.
type TransportError struct {
	Role role.Name
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion transport failed for %s: %v", e.Role, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
