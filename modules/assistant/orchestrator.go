package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Codewithsaffy/ai-todo-app/modules/assistant"

// FallbackText is streamed when the step bound is reached before the model
// produced any text.
const FallbackText = "I wasn't able to finish that request within the allowed number of steps."

// Sink receives text deltas as they are produced. A non-nil error aborts the
// turn, typically because the client went away.
type Sink func(text string) error

// Result summarises a finished turn.
type Result struct {
	Text        string
	Steps       int
	Invocations []ToolResult
	Truncated   bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxSteps bounds the number of model calls per turn.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithStepTimeout bounds each model call.
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.stepTimeout = d
		}
	}
}

// WithSystemPrompt replaces the default persona.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.system = prompt }
}

// WithTracerProvider sets the tracer provider. The global one is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider. The global one is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Orchestrator) { o.meter = mp.Meter(instrumentationName) }
}

// Orchestrator drives one conversation turn: it calls the model, runs the
// tools it asks for in order, and loops until the model answers with text or
// the step bound is reached.
type Orchestrator struct {
	model       Model
	tools       *Registry
	system      string
	maxSteps    int
	stepTimeout time.Duration

	tracer      trace.Tracer
	meter       metric.Meter
	invocations metric.Int64Counter
}

// NewOrchestrator creates an Orchestrator with five steps of at most a minute each.
func NewOrchestrator(model Model, tools *Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:       model,
		tools:       tools,
		system:      SystemPrompt,
		maxSteps:    5,
		stepTimeout: time.Minute,
		tracer:      otel.Tracer(instrumentationName),
		meter:       otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(o)
	}

	counter, err := o.meter.Int64Counter("assistant.tool.invocations",
		metric.WithDescription("Tool calls executed on behalf of the model"),
	)
	if err != nil {
		otel.Handle(err)
	}
	o.invocations = counter
	return o
}

// MaxSteps returns the step bound.
func (o *Orchestrator) MaxSteps() int {
	return o.maxSteps
}

// Run executes one turn for ownerID. history must end with the new user
// message. Text is passed to sink as soon as the model produces it.
//
// A model failure before any text was streamed is returned as an error. After
// text has been streamed, the partial result is returned together with the
// error.
func (o *Orchestrator) Run(ctx context.Context, ownerID string, history []Message, sink Sink) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "assistant.turn", trace.WithAttributes(
		attribute.Int("assistant.history_length", len(history)),
		attribute.Int("assistant.max_steps", o.maxSteps),
	))
	defer span.End()

	conv := Conversation{
		System:   o.system,
		Messages: append([]Message(nil), history...),
		Tools:    o.tools.Definitions(),
	}
	result := &Result{}
	var streamed strings.Builder

	emit := func(text string) error {
		streamed.WriteString(text)
		return sink(text)
	}

	for step := 1; step <= o.maxSteps; step++ {
		result.Steps = step

		text, calls, err := o.step(ctx, step, conv, emit)
		if err != nil {
			result.Text = streamed.String()
			span.RecordError(err)
			span.SetStatus(codes.Error, "model step failed")
			if streamed.Len() == 0 {
				return nil, err
			}
			return result, err
		}

		conv.Messages = append(conv.Messages, Message{Role: RoleAssistant, Content: text, ToolCalls: calls})
		if len(calls) == 0 {
			result.Text = streamed.String()
			span.SetAttributes(attribute.Int("assistant.steps", step))
			return result, nil
		}

		for _, call := range calls {
			res := o.invoke(ctx, ownerID, call)
			result.Invocations = append(result.Invocations, res)
			conv.Messages = append(conv.Messages, Message{Role: RoleTool, ToolResult: &res})
		}
	}

	result.Truncated = true
	span.SetAttributes(
		attribute.Int("assistant.steps", o.maxSteps),
		attribute.Bool("assistant.truncated", true),
	)
	if streamed.Len() == 0 {
		if err := emit(FallbackText); err != nil {
			return nil, err
		}
	}
	result.Text = streamed.String()
	return result, nil
}

// step runs one model call under its own timeout and collects its tool calls.
func (o *Orchestrator) step(ctx context.Context, n int, conv Conversation, emit Sink) (string, []ToolCall, error) {
	ctx, span := o.tracer.Start(ctx, "assistant.step", trace.WithAttributes(attribute.Int("assistant.step", n)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.stepTimeout)
	defer cancel()

	var text strings.Builder
	var calls []ToolCall
	for chunk, err := range o.model.Converse(ctx, conv) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", nil, fmt.Errorf("model step %d: %w", n, err)
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if err := emit(chunk.Text); err != nil {
				return "", nil, fmt.Errorf("stream closed: %w", err)
			}
		}
		if chunk.ToolCall != nil {
			call := *chunk.ToolCall
			if call.ID == "" {
				call.ID = fmt.Sprintf("call_%d_%d", n, len(calls)+1)
			}
			calls = append(calls, call)
		}
	}

	span.SetAttributes(attribute.Int("assistant.tool_calls", len(calls)))
	return text.String(), calls, nil
}

func (o *Orchestrator) invoke(ctx context.Context, ownerID string, call ToolCall) ToolResult {
	ctx, span := o.tracer.Start(ctx, "assistant.tool", trace.WithAttributes(attribute.String("assistant.tool", call.Name)))
	defer span.End()

	res := o.tools.Invoke(ctx, ownerID, call)
	failed := res.Failed()
	if failed {
		span.SetStatus(codes.Error, fmt.Sprint(res.Result["error"]))
	}
	if o.invocations != nil {
		o.invocations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", call.Name),
			attribute.Bool("failed", failed),
		))
	}
	return res
}
