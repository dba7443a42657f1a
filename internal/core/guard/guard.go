// Package guard implements the request-admission pipeline that fronts every
// protected endpoint: authentication, body parsing, dream ownership, message
// quota, and tier resolution, executed in strict order with short-circuit on
// the first failure.
//
// The pipeline is an explicit ordered list of stages sharing one Attempt
// contract, folded by Run. It performs read-only lookups and never mutates
// state; converting failures into HTTP responses is the transport adapter's
// job.
package guard

import (
	"context"
	"net/http"

	"github.com/somnialabs/dreamchat/internal/core/domain"
	"github.com/somnialabs/dreamchat/internal/core/ports"
)

// Context is the execution context threaded through the stages. Stages fill
// in fields as they pass; the wrapped handler receives the populated result.
type Context struct {
	// UserID is the authenticated principal. Set before the pipeline runs
	// (the identity layer resolves it); empty means unauthenticated.
	UserID string
	// Tier is populated by the tier stage. Defaults to free.
	Tier domain.Tier
	// DreamID is the resource reference extracted from the parsed body.
	DreamID string
	// Body is the parsed request payload, populated by the bind stage so the
	// handler does not re-parse it.
	Body any
	// Decision is populated by the quota stage on both admit and deny.
	Decision *ports.AdmissionDecision
}

// Failure is the typed outcome that terminates the pipeline before the
// wrapped handler runs.
type Failure struct {
	Status  int    // HTTP-equivalent status class
	Message string // caller-safe message

	// RequiredTier/CurrentTier are set for tier-requirement failures.
	RequiredTier domain.Tier
	CurrentTier  domain.Tier
	// Decision carries the full admission decision for quota failures so the
	// caller can render remaining-allowance UI.
	Decision *ports.AdmissionDecision
}

func (f *Failure) Error() string { return f.Message }

// Stage is one step of the pipeline. A nil return passes control to the next
// stage; a non-nil Failure short-circuits.
type Stage interface {
	Attempt(ctx context.Context, gc *Context) *Failure
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(ctx context.Context, gc *Context) *Failure

func (f StageFunc) Attempt(ctx context.Context, gc *Context) *Failure { return f(ctx, gc) }

// Pipeline folds an ordered stage list over a guard context.
type Pipeline struct {
	stages []Stage
}

func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Run executes the stages in order, stopping at the first failure.
func (p *Pipeline) Run(ctx context.Context, gc *Context) *Failure {
	for _, stage := range p.stages {
		if fail := stage.Attempt(ctx, gc); fail != nil {
			return fail
		}
	}
	return nil
}

func unauthenticated() *Failure {
	return &Failure{Status: http.StatusUnauthorized, Message: "authentication required"}
}

func forbidden() *Failure {
	return &Failure{Status: http.StatusForbidden, Message: "you do not have access to this dream"}
}

func badRequest(msg string) *Failure {
	return &Failure{Status: http.StatusBadRequest, Message: msg}
}

func internal() *Failure {
	return &Failure{Status: http.StatusInternalServerError, Message: "internal server error"}
}
