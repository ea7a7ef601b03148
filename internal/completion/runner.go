package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/jatanrathod13/researcher/config"
	"github.com/jatanrathod13/researcher/internal/role"
	"github.com/jatanrathod13/researcher/internal/schema"
	"github.com/jatanrathod13/researcher/internal/telemetry"
	"github.com/jatanrathod13/researcher/provider"
	websearch "github.com/jatanrathod13/researcher/tools/web_search"
	"github.com/jatanrathod13/researcher/tools/web_search/models"
)

// Runner drives role stages against an LLM provider, dispatching capability
// invocations to the web searcher and the session fact store.
type Runner struct {
	cfg       *config.Config
	llm       provider.LLMProvider
	searcher  websearch.WebSearcher
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewRunner(cfg *config.Config, llm provider.LLMProvider, searcher websearch.WebSearcher, tele *telemetry.Telemetry) *Runner {
	return &Runner{
		cfg:       cfg,
		llm:       llm,
		searcher:  searcher,
		telemetry: tele,
		logger:    telemetry.NewLogger("RUNNER"),
	}
}

// Run starts the stage in a goroutine and returns its event stream.
func (r *Runner) Run(ctx context.Context, req Request) (<-chan Event, error) {
	def, ok := role.Lookup(req.Role)
	if !ok {
		return nil, fmt.Errorf("unknown role: %s", req.Role)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		switch def.Name {
		case role.Planner:
			r.runPlanner(ctx, def, req, events)
		case role.Researcher:
			r.runResearcher(ctx, def, req, events)
		case role.Editor:
			r.runEditor(ctx, def, req, events)
		}
	}()
	return events, nil
}

func (r *Runner) emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Runner) generate(ctx context.Context, def role.Definition, user string) (string, error) {
	model := r.cfg.LLM.Routing.Model(def.RoutingKey)
	response, in, out, err := r.llm.GenerateWithTokens(ctx, def.Instructions, user, model)
	r.telemetry.LLMRequest(model, err, in, out)
	if err != nil {
		return "", &TransportError{Role: def.Name, Err: err}
	}
	return response, nil
}

// runPlanner asks for a structured research plan. A handoff to the researcher
// is requested ahead of the terminal event, carrying the transcript forward.
func (r *Runner) runPlanner(ctx context.Context, def role.Definition, req Request, events chan<- Event) {
	response, err := r.generate(ctx, def, req.Transcript.Render())
	if err != nil {
		r.emit(ctx, events, Event{Kind: EventFault, Err: err})
		return
	}

	forward := req.Transcript.Append(string(def.Name), response)
	if def.CanHandoff(role.Researcher) {
		r.emit(ctx, events, Event{Kind: EventHandoff, Handoff: &Handoff{Target: role.Researcher, Transcript: forward}})
	}

	raw := extractJSON(response)
	if raw == "" {
		r.logger.Printf("[%s] planner returned no JSON, surfacing raw text", req.CorrelationID)
		r.emit(ctx, events, Event{Kind: EventRawText, Raw: response})
		return
	}
	r.emit(ctx, events, Event{Kind: EventStructured, Structured: json.RawMessage(raw)})
}

// researcherResponse is the JSON protocol the researcher model replies with:
// a summary plus the facts it wants recorded.
type researcherResponse struct {
	Summary string `json:"summary"`
	Facts   []struct {
		Text   string `json:"text"`
		Source string `json:"source"`
	} `json:"facts"`
}

// runResearcher performs one web search per plan query, summarizes the
// gathered snippets, and records marked facts. Facts are emitted before the
// final summary so observers see them as they appear.
func (r *Runner) runResearcher(ctx context.Context, def role.Definition, req Request, events chan<- Event) {
	queries := []string{}
	if req.Plan != nil {
		queries = req.Plan.SearchQueries
	}

	k := r.cfg.Search.MaxResults
	if k <= 0 {
		k = 5
	}

	var snippets []string
	for _, q := range queries {
		results, err := r.search(ctx, def, q, k)
		if err != nil {
			// CapabilityFault: the stage continues with partial information.
			r.logger.Printf("[%s] %v", req.CorrelationID, err)
			r.emit(ctx, events, Event{Kind: EventCapability, Capability: &CapabilityCall{
				Name: role.CapabilityWebSearch,
				Args: map[string]any{"query": q, "error": err.Error()},
			}})
			continue
		}
		if !r.emit(ctx, events, Event{Kind: EventCapability, Capability: &CapabilityCall{
			Name: role.CapabilityWebSearch,
			Args: map[string]any{"query": q, "results": len(results)},
		}}) {
			return
		}
		for _, res := range results {
			snippets = append(snippets, fmt.Sprintf("Query: %s\nTitle: %s\nURL: %s\nSnippet: %s", q, res.Title, res.URL, res.Snippet))
		}
	}

	user := fmt.Sprintf(`TRANSCRIPT SO FAR:
%s
WEB SEARCH RESULTS:
%s

Summarize the results per your instructions. Respond ONLY with valid JSON:
{"summary": "2-3 paragraph summary, under 300 words", "facts": [{"text": "important standalone fact", "source": "url or empty"}]}
Do not include any other text or explanation.`, req.Transcript.Render(), strings.Join(snippets, "\n---\n"))

	response, err := r.generate(ctx, def, user)
	if err != nil {
		r.emit(ctx, events, Event{Kind: EventFault, Err: err})
		return
	}

	summary := response
	if raw := extractJSON(response); raw != "" {
		var parsed researcherResponse
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.Summary != "" {
			summary = parsed.Summary
			for _, f := range parsed.Facts {
				if strings.TrimSpace(f.Text) == "" {
					continue
				}
				fact, err := r.recordFact(def, req, f.Text, f.Source)
				if err != nil {
					r.logger.Printf("[%s] %v", req.CorrelationID, err)
					continue
				}
				if !r.emit(ctx, events, Event{Kind: EventCapability, Capability: &CapabilityCall{
					Name: role.CapabilityRecordFact,
					Args: map[string]any{"text": f.Text, "source": f.Source},
					Fact: &fact,
				}}) {
					return
				}
			}
		}
	}

	r.emit(ctx, events, Event{Kind: EventRawText, Raw: summary})
}

// runEditor synthesizes the final report from the full transcript.
func (r *Runner) runEditor(ctx context.Context, def role.Definition, req Request, events chan<- Event) {
	user := fmt.Sprintf(`FULL TRANSCRIPT (original query, research plan, research summaries):
%s
Write the report per your instructions.`, req.Transcript.Render())

	response, err := r.generate(ctx, def, user)
	if err != nil {
		r.emit(ctx, events, Event{Kind: EventFault, Err: err})
		return
	}

	raw := extractJSON(response)
	if raw == "" {
		r.logger.Printf("[%s] editor returned no JSON, surfacing raw text", req.CorrelationID)
		r.emit(ctx, events, Event{Kind: EventRawText, Raw: response})
		return
	}
	r.emit(ctx, events, Event{Kind: EventStructured, Structured: json.RawMessage(raw)})
}

// search invokes the web_search capability, enforcing the role allowlist.
func (r *Runner) search(ctx context.Context, def role.Definition, q string, k int) ([]models.Result, error) {
	if !def.Allowed(role.CapabilityWebSearch) {
		return nil, &CapabilityError{Capability: role.CapabilityWebSearch, Err: fmt.Errorf("role %s may not invoke it", def.Name)}
	}
	if r.searcher == nil {
		return nil, &CapabilityError{Capability: role.CapabilityWebSearch, Err: fmt.Errorf("no searcher configured")}
	}
	if timeout := r.cfg.Search.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	results, err := r.searcher.Discover(ctx, q, k)
	if err != nil {
		return nil, &CapabilityError{Capability: role.CapabilityWebSearch, Err: err}
	}
	return results, nil
}

// recordFact invokes the record_fact capability, enforcing the role allowlist.
func (r *Runner) recordFact(def role.Definition, req Request, text, source string) (schema.Fact, error) {
	if !def.Allowed(role.CapabilityRecordFact) {
		return schema.Fact{}, &CapabilityError{Capability: role.CapabilityRecordFact, Err: fmt.Errorf("role %s may not invoke it", def.Name)}
	}
	if req.Facts == nil {
		return schema.Fact{}, &CapabilityError{Capability: role.CapabilityRecordFact, Err: fmt.Errorf("no fact store attached to request")}
	}
	stored := req.Facts.Record(text, source)
	r.telemetry.FactRecorded()
	return stored, nil
}

// extractJSON pulls the first balanced JSON object out of a model response.
func extractJSON(response string) string {
	start := -1
	depth := 0
	for i, ch := range response {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
