// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/validation-engine/internal/metrics"
	"github.com/pdiddy/validation-engine/pkg/types"
)

// ActionKind names a user action.
type ActionKind string

const (
	ActionAnalyze     ActionKind = "analyze"
	ActionExplore     ActionKind = "explore"
	ActionLock        ActionKind = "lock"
	ActionBack        ActionKind = "back"
	ActionCheckTrends ActionKind = "check_trends"
	ActionProceed     ActionKind = "proceed"
	ActionMine        ActionKind = "mine"
	ActionBuild       ActionKind = "build"
	ActionStartOver   ActionKind = "start_over"
	ActionReset       ActionKind = "reset"
)

// actionOrder lists actions in workflow order for Allowed.
var actionOrder = []ActionKind{
	ActionAnalyze,
	ActionExplore,
	ActionLock,
	ActionBack,
	ActionCheckTrends,
	ActionProceed,
	ActionMine,
	ActionBuild,
	ActionStartOver,
	ActionReset,
}

// transitions maps each action to the phases it may start from.
var transitions = map[ActionKind][]types.Phase{
	ActionAnalyze:     {types.PhaseInput},
	ActionExplore:     {types.PhaseLevel1},
	ActionLock:        {types.PhaseLevel2},
	ActionBack:        {types.PhaseLevel1, types.PhaseLevel2},
	ActionCheckTrends: {types.PhaseLocked, types.PhaseTrendCheck},
	ActionProceed:     {types.PhaseTrendCheck},
	ActionMine:        {types.PhaseMining},
	ActionBuild:       {types.PhaseMining, types.PhaseSynthesizing, types.PhaseCompetitorRefine},
	ActionStartOver:   {types.PhaseComplete},
	ActionReset:       types.Phases(),
}

// Valid reports whether k is a known action.
func (k ActionKind) Valid() bool {
	_, ok := transitions[k]
	return ok
}

// Action is one user-initiated transition request. Value carries the market,
// category or niche for the actions that take one.
type Action struct {
	Kind  ActionKind `json:"kind" yaml:"kind"`
	Value string     `json:"value,omitempty" yaml:"value,omitempty"`
}

// Allowed returns the actions that may start from phase, in workflow order.
func Allowed(phase types.Phase) []ActionKind {
	var kinds []ActionKind
	for _, k := range actionOrder {
		for _, p := range transitions[k] {
			if p == phase {
				kinds = append(kinds, k)
				break
			}
		}
	}
	return kinds
}

// Transition outcomes reported to metrics and logs.
const (
	OutcomeAdvanced = metrics.OutcomeAdvanced
	OutcomeSkipped  = metrics.OutcomeSkipped
	OutcomeRejected = metrics.OutcomeRejected
)

// Apply validates a against rec's phase, runs the matching transition, and
// records the outcome. Like the transitions themselves, it always returns the
// record the caller should keep.
func (c *Controller) Apply(ctx context.Context, rec types.ResearchRecord, a Action) (types.ResearchRecord, error) {
	start := time.Now()

	var next types.ResearchRecord
	var err error
	switch a.Kind {
	case ActionAnalyze:
		next, err = c.Analyze(ctx, rec, a.Value)
	case ActionExplore:
		next, err = c.Explore(ctx, rec, a.Value)
	case ActionLock:
		next, err = c.Lock(ctx, rec, a.Value)
	case ActionBack:
		next, err = c.Back(ctx, rec)
	case ActionCheckTrends:
		next, err = c.CheckTrends(ctx, rec)
	case ActionProceed:
		next, err = c.Proceed(ctx, rec)
	case ActionMine:
		next, err = c.Mine(ctx, rec)
	case ActionBuild:
		next, err = c.Build(ctx, rec)
	case ActionStartOver:
		next, err = c.StartOver(ctx, rec)
	case ActionReset:
		next, err = c.Reset(ctx, rec)
	default:
		next, err = rec, fmt.Errorf("%w: %q", ErrUnknownAction, a.Kind)
	}

	if err == nil {
		if verr := next.Validate(); verr != nil {
			next, err = rec, fmt.Errorf("%w: %s produced an invalid record: %v", ErrInvalidRecord, a.Kind, verr)
		}
	}

	outcome := OutcomeOf(a.Kind, next, err)
	metrics.RecordTransition(string(a.Kind), outcome)

	fields := []zap.Field{
		zap.String("action", string(a.Kind)),
		zap.String("from", string(rec.Phase)),
		zap.String("to", string(next.Phase)),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		c.logger.Info("transition rejected", append(fields, zap.Error(err))...)
	} else {
		c.logger.Info("transition applied", fields...)
	}
	return next, err
}

// OutcomeOf classifies a transition result. A trend check that lands in
// Mining skipped the optional signal.
func OutcomeOf(kind ActionKind, next types.ResearchRecord, err error) string {
	switch {
	case err != nil:
		return OutcomeRejected
	case kind == ActionCheckTrends && next.Phase == types.PhaseMining:
		return OutcomeSkipped
	default:
		return OutcomeAdvanced
	}
}

// IsUserError reports whether err is a caller mistake rather than an
// external-service failure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrWrongPhase) ||
		errors.Is(err, ErrNotACandidate) ||
		errors.Is(err, ErrEmptyMarket) ||
		errors.Is(err, ErrNoSnippets) ||
		errors.Is(err, ErrUnknownAction)
}
