package app

import (
	"context"
	"fmt"

	"github.com/kilianp07/ctramp/core/factory"
	"github.com/kilianp07/ctramp/core/logger"
	"github.com/kilianp07/ctramp/core/matrix"
	"github.com/kilianp07/ctramp/core/model"
	"github.com/kilianp07/ctramp/core/random"
	"github.com/kilianp07/ctramp/core/scheduler"
)

// NoLedger is returned by Stage.Ledger for stages that take no random draws.
const NoLedger random.Stage = -1

// Stage is one model component applied to every household of a partition.
type Stage interface {
	Name() string
	// Ledger is the random stage whose draws Apply consumes.
	Ledger() random.Stage
	Apply(ctx context.Context, env *Env, h *model.Household) error
}

// Restarter is implemented by stages that must undo their effect on a
// household before they are replayed.
type Restarter interface {
	Restart(env *Env, h *model.Household) error
}

// MatrixLookup resolves a logical matrix name to its data entry.
type MatrixLookup func(name string) (matrix.DataEntry, bool)

// Env holds what stages share besides the household.
type Env struct {
	Worker    string
	Scheduler *scheduler.Scheduler
	Matrices  matrix.Service
	Lookup    MatrixLookup
	Log       logger.Logger

	loaded map[string]*matrix.Matrix
}

// Matrix fetches a matrix by logical name. Matrices are kept for the life of
// the worker once fetched.
func (e *Env) Matrix(ctx context.Context, name string) (*matrix.Matrix, error) {
	if m, ok := e.loaded[name]; ok {
		return m, nil
	}
	if e.Matrices == nil || e.Lookup == nil {
		return nil, fmt.Errorf("no matrix service for %q", name)
	}
	entry, ok := e.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("matrix %q is not configured", name)
	}
	m, err := e.Matrices.GetMatrix(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("matrix %q: %w", name, err)
	}
	if e.loaded == nil {
		e.loaded = make(map[string]*matrix.Matrix)
	}
	e.loaded[name] = m
	return m, nil
}

var stages = factory.NewRegistry[Stage]()

// RegisterStage adds a stage factory under name.
func RegisterStage(name string, f factory.Factory[Stage]) error {
	return stages.Register(name, f)
}

// StageNames lists the registered stage types.
func StageNames() []string { return stages.Names() }

// NewStages builds the configured pipeline in order.
func NewStages(cfgs []factory.ModuleConfig) ([]Stage, error) {
	out := make([]Stage, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := stages.Create(c)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", c.Type, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// timeOfDayStage returns the ledger stage of the time-of-day model of c.
func timeOfDayStage(c model.Category) random.Stage {
	switch c {
	case model.Mandatory:
		return random.MandatoryTourTimeOfDay
	case model.JointNonMandatory:
		return random.JointTourTimeOfDay
	case model.IndividualNonMandatory:
		return random.NonMandatoryTourTimeOfDay
	case model.AtWork:
		return random.AtWorkSubtourTimeOfDay
	}
	return NoLedger
}
