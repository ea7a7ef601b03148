// Package role declares the fixed set of agent roles in the research
// workflow. Roles are static declarations, not runtime state: each one bundles
// instructions, a capability allowlist, an expected output schema, and the
// handoff targets it may request.
package role

// Name identifies a role. The set is closed and known at build time.
type Name string

const (
	Planner    Name = "planner"
	Researcher Name = "researcher"
	Editor     Name = "editor"
)

// Capability names a side-effecting or read-only action a role may invoke
// during a stage.
type Capability string

const (
	CapabilityWebSearch  Capability = "web_search"
	CapabilityRecordFact Capability = "record_fact"
)

// Schema identifies the structured output contract bound to a role.
type Schema string

const (
	SchemaNone   Schema = ""
	SchemaPlan   Schema = "research_plan"
	SchemaReport Schema = "research_report"
)

// Definition is the declarative bundle for one role.
type Definition struct {
	Name         Name
	Instructions string
	RoutingKey   string // which llm.routing slot selects the model
	Capabilities []Capability
	Output       Schema
	Handoffs     []Name
}

const plannerInstructions = `You are the coordinator of this research operation. Your job is to:
1. Understand the user's research topic
2. Create a research plan with the following elements:
   - topic: A clear statement of the research topic
   - search_queries: A list of 3-5 specific search queries that will help gather information
   - focus_areas: A list of 3-5 key aspects of the topic to investigate

IMPORTANT: You MUST respond ONLY with valid JSON with these exact fields:
- topic: string
- search_queries: list of strings
- focus_areas: list of strings

Example format:
{
  "topic": "Best cruise lines for first-time travelers",
  "search_queries": [
    "top rated cruise lines for beginners",
    "first time cruise tips and recommendations",
    "best cruise destinations for newcomers"
  ],
  "focus_areas": [
    "Cruise line comparisons",
    "Beginner-friendly features",
    "Popular destinations"
  ]
}
Do not include any other text or explanation.`

const researcherInstructions = `You are a research assistant. Given a search term and a set of web search
results, produce a concise summary. The summary must be 2-3 paragraphs and less
than 300 words. Capture the main points. Write succinctly, no need to have
complete sentences or good grammar. This will be consumed by someone
synthesizing a report, so it is vital you capture the essence and ignore any
fluff. Do not include any additional commentary other than the summary itself.
While summarizing, mark the important standalone facts you discover so they can
be saved with their source.`

const editorInstructions = `You are a senior researcher tasked with writing a cohesive report for a
research query. You will be provided with the original query, the research
plan, and research summaries prepared by a research assistant.

You should first come up with an outline for the report that describes the
structure and flow of the report. Then, generate the report and return that as
your final output.

The final output should be in markdown format, and it should be lengthy and
detailed. Aim for 5-10 pages of content, at least 1000 words.

Respond ONLY with valid JSON with these exact fields:
- title: string
- outline: list of strings
- report: string (markdown body)
- sources: list of strings
- word_count: integer
Do not include any other text or explanation.`

var definitions = map[Name]Definition{
	Planner: {
		Name:         Planner,
		Instructions: plannerInstructions,
		RoutingKey:   "planning",
		Capabilities: nil,
		Output:       SchemaPlan,
		Handoffs:     []Name{Researcher, Editor},
	},
	Researcher: {
		Name:         Researcher,
		Instructions: researcherInstructions,
		RoutingKey:   "research",
		Capabilities: []Capability{CapabilityWebSearch, CapabilityRecordFact},
		Output:       SchemaNone,
		Handoffs:     nil,
	},
	Editor: {
		Name:         Editor,
		Instructions: editorInstructions,
		RoutingKey:   "editing",
		Capabilities: nil,
		Output:       SchemaReport,
		Handoffs:     nil,
	},
}

// Lookup returns the definition for a role name.
func Lookup(name Name) (Definition, bool) {
	def, ok := definitions[name]
	return def, ok
}

// Allowed reports whether the role may invoke the given capability.
func (d Definition) Allowed(cap Capability) bool {
	for _, c := range d.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// CanHandoff reports whether the role may hand the transcript to target.
func (d Definition) CanHandoff(target Name) bool {
	for _, h := range d.Handoffs {
		if h == target {
			return true
		}
	}
	return false
}
