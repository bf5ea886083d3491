package decision

import (
	"context"
	"fmt"
	"sync"

	"Agentomics/internal/domain/models"
	domsvc "Agentomics/internal/domain/service"
)

// Step is one canned answer of a ScriptedDecider.
type Step struct {
	Decision models.Decision
	Err      error
}

// ScriptedDecider replays canned answers per role, in order. Once a role's
// script runs out, its last step repeats.
type ScriptedDecider struct {
	mu    sync.Mutex
	steps map[models.Role][]Step
	calls map[models.Role]int
	seen  []models.DecisionRequest
}

func NewScriptedDecider() *ScriptedDecider {
	return &ScriptedDecider{
		steps: make(map[models.Role][]Step),
		calls: make(map[models.Role]int),
	}
}

// Then queues an accepted answer for its role.
func (s *ScriptedDecider) Then(d models.Decision) *ScriptedDecider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[d.Role()] = append(s.steps[d.Role()], Step{Decision: d})
	return s
}

// ThenStep queues an arbitrary answer (possibly a failure) for role.
func (s *ScriptedDecider) ThenStep(role models.Role, step Step) *ScriptedDecider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[role] = append(s.steps[role], step)
	return s
}

func (s *ScriptedDecider) Decide(ctx context.Context, req models.DecisionRequest) (models.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, req)

	steps := s.steps[req.Role]
	if len(steps) == 0 {
		return nil, fmt.Errorf("no scripted answer for %s", req.Role)
	}
	i := s.calls[req.Role]
	s.calls[req.Role]++
	if i >= len(steps) {
		i = len(steps) - 1
	}
	return steps[i].Decision, steps[i].Err
}

// Calls returns how many times role was asked.
func (s *ScriptedDecider) Calls(role models.Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[role]
}

// Requests returns every request received, in arrival order.
func (s *ScriptedDecider) Requests() []models.DecisionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DecisionRequest(nil), s.seen...)
}

// HoldLastQuarter scripts every role to repeat its values of the last seeded
// quarter. It backs dry runs.
func HoldLastQuarter(state *models.GlobalState) (*ScriptedDecider, error) {
	s := NewScriptedDecider()
	for _, role := range models.Roles() {
		values := make(map[string]float64)
		for _, f := range models.FieldsOf(role) {
			sr, _ := state.SeriesByID(f.ID)
			v, ok := sr.Last()
			if !ok {
				return nil, fmt.Errorf("series %s is empty", f.ID)
			}
			values[f.ID] = v.Value()
		}
		d, err := models.DecisionFromValues(role, values)
		if err != nil {
			return nil, err
		}
		s.Then(d)
	}
	return s, nil
}

// Registry maps every role to the decider playing it.
type Registry struct {
	deciders map[models.Role]domsvc.Decider
}

func NewRegistry() *Registry {
	return &Registry{deciders: make(map[models.Role]domsvc.Decider)}
}

// Uniform registers d for every role.
func Uniform(d domsvc.Decider) *Registry {
	r := NewRegistry()
	for _, role := range models.Roles() {
		r.Register(role, d)
	}
	return r
}

func (r *Registry) Register(role models.Role, d domsvc.Decider) *Registry {
	r.deciders[role] = d
	return r
}

func (r *Registry) Lookup(role models.Role) (domsvc.Decider, bool) {
	d, ok := r.deciders[role]
	return d, ok
}
