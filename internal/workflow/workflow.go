// Package workflow drives a research session through its stages: planning,
// researching, editing. Each stage is a completion run consumed as an event
// stream; structural failures degrade the output instead of halting the run.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jatanrathod13/researcher/config"
	"github.com/jatanrathod13/researcher/internal/archive"
	"github.com/jatanrathod13/researcher/internal/completion"
	"github.com/jatanrathod13/researcher/internal/role"
	"github.com/jatanrathod13/researcher/internal/schema"
	"github.com/jatanrathod13/researcher/internal/session"
	"github.com/jatanrathod13/researcher/internal/telemetry"
)

// Orchestrator runs research sessions end to end.
type Orchestrator struct {
	cfg       *config.Config
	service   completion.Service
	sessions  *session.Manager
	archive   archive.Archive
	telemetry *telemetry.Telemetry
	logger    *log.Logger
	tracer    trace.Tracer
}

func New(cfg *config.Config, svc completion.Service, sessions *session.Manager, arc archive.Archive, tele *telemetry.Telemetry) *Orchestrator {
	if arc == nil {
		arc = archive.Disabled{}
	}
	return &Orchestrator{
		cfg:       cfg,
		service:   svc,
		sessions:  sessions,
		archive:   arc,
		telemetry: tele,
		logger:    telemetry.NewLogger("WORKFLOW"),
		tracer:    otel.Tracer("researcher/workflow"),
	}
}

// Sessions exposes the session manager for read access by the API layer.
func (o *Orchestrator) Sessions() *session.Manager { return o.sessions }

// Archive exposes the run archive for the API layer.
func (o *Orchestrator) Archive() archive.Archive { return o.archive }

// StartSession begins a research run for the topic and returns its ID. The
// pipeline runs in its own goroutine under a cancellable context.
func (o *Orchestrator) StartSession(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("topic must not be empty")
	}

	sess, runCtx := o.sessions.Create(ctx, topic)
	o.telemetry.SessionStarted()
	o.logger.Printf("session %s started: %s", sess.ID(), topic)

	go func() {
		defer o.sessions.Finish(sess.ID())
		o.Run(runCtx, sess)
	}()
	return sess.ID(), nil
}

// Run drives one session through the full pipeline. It always leaves the
// session in a terminal status.
func (o *Orchestrator) Run(ctx context.Context, sess *session.Session) {
	ctx, span := o.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(attribute.String("session.id", sess.ID())))
	defer span.End()

	sess.AppendTranscript("user", "Research this topic thoroughly: "+sess.Topic())

	plan := o.runPlanning(ctx, sess)
	if ctx.Err() != nil {
		o.abort(sess, ctx.Err())
		return
	}

	o.runResearching(ctx, sess, plan)
	if ctx.Err() != nil {
		o.abort(sess, ctx.Err())
		return
	}

	outcome := o.runEditing(ctx, sess)
	if ctx.Err() != nil {
		o.abort(sess, ctx.Err())
		return
	}

	o.telemetry.SessionCompleted(outcome)
	span.SetAttributes(attribute.String("session.outcome", outcome))
	o.saveRun(sess)
	o.logger.Printf("session %s finished: %s (%s)", sess.ID(), sess.Status(), outcome)
}

// runPlanning produces the research plan. Planning never halts the session:
// any structural failure falls back to a synthetic plan built from the topic.
func (o *Orchestrator) runPlanning(ctx context.Context, sess *session.Session) schema.ResearchPlan {
	ctx, span := o.tracer.Start(ctx, "workflow.planning")
	defer span.End()
	start := time.Now()
	defer func() { o.telemetry.ObserveStage("planning", time.Since(start)) }()

	o.transition(sess, session.StatusPlanning)
	sess.AddProgress("planning research approach")

	terminal, handoff := o.runStage(ctx, sess, completion.Request{
		Role:          role.Planner,
		Transcript:    sess.Transcript(),
		CorrelationID: sess.ID(),
	})
	if handoff != nil {
		o.adoptTranscript(sess, *handoff)
	}

	plan := fallbackPlan(sess.Topic())
	switch terminal.Kind {
	case completion.EventStructured:
		decoded, err := schema.DecodePlan(terminal.Structured)
		if err != nil {
			o.logger.Printf("session %s: planner output rejected, using fallback plan: %v", sess.ID(), err)
			span.SetStatus(codes.Error, "plan rejected")
			sess.AddProgress("planner output was not usable, continuing with a basic plan")
		} else {
			plan = decoded
			for _, advisory := range schema.PlanAdvisories(plan) {
				o.logger.Printf("session %s: %s", sess.ID(), advisory)
			}
			sess.AddProgress(fmt.Sprintf("plan ready: %d queries, %d focus areas", len(plan.SearchQueries), len(plan.FocusAreas)))
		}
	case completion.EventRawText:
		o.logger.Printf("session %s: planner returned prose, using fallback plan", sess.ID())
		sess.AddProgress("planner output was not usable, continuing with a basic plan")
	case completion.EventFault:
		o.logger.Printf("session %s: planner fault, using fallback plan: %v", sess.ID(), terminal.Err)
		span.RecordError(terminal.Err)
		sess.AddProgress("planner unavailable, continuing with a basic plan")
	}

	if err := sess.SetPlan(plan); err != nil {
		o.logger.Printf("session %s: %v", sess.ID(), err)
	}
	return plan
}

// runResearching runs the researcher stage with a concurrent progress watcher
// observing fact-store growth.
func (o *Orchestrator) runResearching(ctx context.Context, sess *session.Session, plan schema.ResearchPlan) {
	ctx, span := o.tracer.Start(ctx, "workflow.researching",
		trace.WithAttributes(attribute.Int("plan.queries", len(plan.SearchQueries))))
	defer span.End()
	start := time.Now()
	defer func() { o.telemetry.ObserveStage("researching", time.Since(start)) }()

	o.transition(sess, session.StatusResearching)
	sess.AddProgress("gathering information")

	stopWatcher := o.watchFacts(ctx, sess)
	defer stopWatcher()

	terminal, handoff := o.runStage(ctx, sess, completion.Request{
		Role:          role.Researcher,
		Transcript:    sess.Transcript(),
		CorrelationID: sess.ID(),
		Plan:          &plan,
		Facts:         sess.Facts(),
	})
	if handoff != nil {
		o.adoptTranscript(sess, *handoff)
	}

	switch terminal.Kind {
	case completion.EventRawText:
		sess.AppendTranscript(string(role.Researcher), terminal.Raw)
		sess.AddProgress(fmt.Sprintf("research complete: %d facts collected", sess.Facts().Size()))
	case completion.EventStructured:
		// researcher protocol is raw text; keep whatever arrived
		sess.AppendTranscript(string(role.Researcher), string(terminal.Structured))
		sess.AddProgress(fmt.Sprintf("research complete: %d facts collected", sess.Facts().Size()))
	case completion.EventFault:
		// continue to editing with whatever the transcript holds
		o.logger.Printf("session %s: researcher fault: %v", sess.ID(), terminal.Err)
		span.RecordError(terminal.Err)
		sess.AddProgress("research was interrupted, continuing with partial findings")
	}
	span.SetAttributes(attribute.Int("facts.count", sess.Facts().Size()))
}

// runEditing produces the final result and returns the completion outcome
// label: report, degraded, or failed.
func (o *Orchestrator) runEditing(ctx context.Context, sess *session.Session) string {
	ctx, span := o.tracer.Start(ctx, "workflow.editing")
	defer span.End()
	start := time.Now()
	defer func() { o.telemetry.ObserveStage("editing", time.Since(start)) }()

	o.transition(sess, session.StatusEditing)
	sess.AddProgress("writing final report")

	terminal, _ := o.runStage(ctx, sess, completion.Request{
		Role:          role.Editor,
		Transcript:    sess.Transcript(),
		CorrelationID: sess.ID(),
	})

	switch terminal.Kind {
	case completion.EventStructured:
		report, err := schema.DecodeReport(terminal.Structured)
		if err == nil {
			o.complete(sess, schema.Result{Kind: schema.ResultReport, Report: &report})
			return "report"
		}
		o.logger.Printf("session %s: editor output rejected: %v", sess.ID(), err)
		span.SetStatus(codes.Error, "report rejected")
		sess.AppendTranscript(string(role.Editor), string(terminal.Structured))
		return o.degrade(sess, nil)
	case completion.EventRawText:
		sess.AppendTranscript(string(role.Editor), terminal.Raw)
		return o.degrade(sess, nil)
	default:
		span.RecordError(terminal.Err)
		return o.degrade(sess, terminal.Err)
	}
}

// degrade finishes the session without a schema-conformant report. Whatever
// prose the transcript holds becomes the degraded result; with nothing to
// recover the session fails with an apology embedding the topic and cause.
func (o *Orchestrator) degrade(sess *session.Session, cause error) string {
	recoverable := sess.Transcript().RecoverableText()
	if strings.TrimSpace(recoverable) != "" {
		o.complete(sess, schema.Result{Kind: schema.ResultDegraded, Raw: recoverable})
		return "degraded"
	}

	if cause == nil {
		cause = errors.New("no usable content was produced")
	}
	apology := fmt.Sprintf(
		"We could not produce a research report on %q. The run failed before any usable findings were gathered: %v. Please try again.",
		sess.Topic(), cause)
	if err := sess.SetResult(schema.Result{Kind: schema.ResultDegraded, Raw: apology}); err != nil {
		o.logger.Printf("session %s: %v", sess.ID(), err)
	}
	sess.SetError(cause.Error())
	o.transition(sess, session.StatusFailed)
	return "failed"
}

func (o *Orchestrator) complete(sess *session.Session, result schema.Result) {
	if err := sess.SetResult(result); err != nil {
		o.logger.Printf("session %s: %v", sess.ID(), err)
	}
	o.transition(sess, session.StatusComplete)
	sess.AddProgress("report ready")
}

// abort marks a canceled or timed-out session failed.
func (o *Orchestrator) abort(sess *session.Session, cause error) {
	o.logger.Printf("session %s aborted: %v", sess.ID(), cause)
	sess.SetError(cause.Error())
	o.transition(sess, session.StatusFailed)
	o.telemetry.SessionCompleted("failed")
	o.saveRun(sess)
}

func (o *Orchestrator) transition(sess *session.Session, next session.Status) {
	if err := sess.Transition(next); err != nil {
		o.logger.Printf("session %s: %v", sess.ID(), err)
	}
}

// runStage consumes one stage's event stream and returns its terminal event
// plus any handoff request seen along the way. Capability events are already
// applied by the adapter; they surface here only for logging.
func (o *Orchestrator) runStage(ctx context.Context, sess *session.Session, req completion.Request) (completion.Event, *completion.Handoff) {
	events, err := o.service.Run(ctx, req)
	if err != nil {
		return completion.Event{Kind: completion.EventFault, Err: err}, nil
	}

	var handoff *completion.Handoff
	terminal := completion.Event{Kind: completion.EventFault, Err: fmt.Errorf("stage %s ended without a terminal event", req.Role)}
	for ev := range events {
		switch ev.Kind {
		case completion.EventCapability:
			o.logger.Printf("session %s: %s %v", sess.ID(), ev.Capability.Name, ev.Capability.Args)
		case completion.EventHandoff:
			h := *ev.Handoff
			handoff = &h
		default:
			terminal = ev
		}
	}
	if ctx.Err() != nil {
		return completion.Event{Kind: completion.EventFault, Err: ctx.Err()}, handoff
	}
	return terminal, handoff
}

// adoptTranscript replaces the session transcript with the one a handoff
// carries when it is strictly longer.
func (o *Orchestrator) adoptTranscript(sess *session.Session, h completion.Handoff) {
	if len(h.Transcript) > len(sess.Transcript()) {
		for _, m := range h.Transcript[len(sess.Transcript()):] {
			sess.AppendTranscript(m.Origin, m.Content)
		}
	}
}

// watchFacts observes fact-store growth while research runs, recording a
// bounded number of growth notifications as progress updates. It never blocks
// the researcher; the returned stop func waits for the watcher to exit.
func (o *Orchestrator) watchFacts(ctx context.Context, sess *session.Session) func() {
	updates, cancel := sess.Facts().Subscribe()
	done := make(chan struct{})

	window := o.cfg.Watcher.Window
	if window <= 0 {
		window = 15 * time.Second
	}
	maxUpdates := o.cfg.Watcher.MaxUpdates
	if maxUpdates <= 0 {
		maxUpdates = 15
	}

	go func() {
		defer close(done)
		deadline := time.NewTimer(window)
		defer deadline.Stop()

		seen := 0
		last := sess.Facts().Size()
		for seen < maxUpdates {
			select {
			case size, ok := <-updates:
				if !ok {
					return
				}
				if size <= last {
					continue
				}
				last = size
				seen++
				sess.AddProgress(fmt.Sprintf("collected %d facts so far", size))
			case <-deadline.C:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (o *Orchestrator) saveRun(sess *session.Session) {
	ctx, cancelSave := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelSave()
	if err := o.archive.SaveRun(ctx, sess.SnapshotState()); err != nil {
		o.logger.Printf("session %s: archive save failed: %v", sess.ID(), err)
	}
}

// fallbackPlan is the plan adopted when the planner cannot produce one.
func fallbackPlan(topic string) schema.ResearchPlan {
	return schema.ResearchPlan{
		Topic:         topic,
		SearchQueries: []string{"research " + topic},
		FocusAreas:    []string{"general information about " + topic},
	}
}
