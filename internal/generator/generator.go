// Package generator requests study plans from an external model.
//
// A Generator is single-shot: each call is one round-trip that either returns
// a complete, shape-coerced response or a *GenerationError. There is no retry
// and no streaming.
package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/fentz26/studyplan/internal/models"
)

// Operation names carried by GenerationError.
const (
	OpGenerate  = "generate"
	OpRebalance = "rebalance"
)

// Generator produces plan responses from constraints.
type Generator interface {
	// Generate builds a new plan from scratch.
	Generate(ctx context.Context, c models.PlanConstraints) (*models.PlanResponse, error)
	// Rebalance adjusts an existing plan document given its task statuses.
	Rebalance(ctx context.Context, doc models.PlanDocument, c models.PlanConstraints) (*models.PlanResponse, error)
}

// GenerationError reports a failed or unparsable generator call.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s plan: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func fail(op string, err error) error {
	return &GenerationError{Op: op, Err: err}
}

// completer sends one prompt pair to a model and returns its raw text.
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

// Client adapts a model backend into a Generator using the shared prompt
// templates and response decoding.
type Client struct {
	backend completer
	prompts *Prompts
	clock   func() string
}

func (g *Client) Generate(ctx context.Context, c models.PlanConstraints) (*models.PlanResponse, error) {
	user, err := g.prompts.RenderGenerate(c)
	if err != nil {
		return nil, fail(OpGenerate, err)
	}
	return g.call(ctx, OpGenerate, user)
}

func (g *Client) Rebalance(ctx context.Context, doc models.PlanDocument, c models.PlanConstraints) (*models.PlanResponse, error) {
	user, err := g.prompts.RenderRebalance(doc, c, g.clock())
	if err != nil {
		return nil, fail(OpRebalance, err)
	}
	return g.call(ctx, OpRebalance, user)
}

func (g *Client) call(ctx context.Context, op, user string) (*models.PlanResponse, error) {
	text, err := g.backend.complete(ctx, g.prompts.System(), user)
	if err != nil {
		return nil, fail(op, err)
	}
	resp, err := Decode([]byte(text))
	if err != nil {
		return nil, fail(op, err)
	}
	return resp, nil
}

func newClient(backend completer, prompts *Prompts) *Client {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Client{
		backend: backend,
		prompts: prompts,
		clock:   func() string { return time.Now().Format(models.DateLayout) },
	}
}
