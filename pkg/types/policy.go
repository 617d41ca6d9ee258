package types

import (
	"fmt"
	"sort"
)

// ErrTransitionNotAllowed reports that the target state is not reachable from
// the current state according to the configured policy.
var ErrTransitionNotAllowed = fmt.Errorf("go-mailsync: state transition not allowed")

// TransitionPolicy validates state machine transitions.
type TransitionPolicy[S ~string] interface {
	Validate(current, target S) error
	AllowedTargets(current S) []S
}

// StaticTransitionPolicy enforces a fixed transition graph.
type StaticTransitionPolicy[S ~string] struct {
	graph      map[S]map[S]struct{}
	allowEmpty bool
}

// PolicyOption customizes a StaticTransitionPolicy.
type PolicyOption func(*policyOptions)

type policyOptions struct {
	allowEmpty bool
}

// WithEmptyState treats the zero value as a real state that may appear as a
// transition target. Without it empty targets are dropped and rejected.
func WithEmptyState() PolicyOption {
	return func(o *policyOptions) {
		o.allowEmpty = true
	}
}

// NewStaticTransitionPolicy creates a policy from a transition graph.
func NewStaticTransitionPolicy[S ~string](graph map[S][]S, opts ...PolicyOption) *StaticTransitionPolicy[S] {
	var options policyOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	internal := make(map[S]map[S]struct{}, len(graph))
	for from, targets := range graph {
		targetSet := make(map[S]struct{}, len(targets))
		for _, to := range targets {
			if to == "" && !options.allowEmpty {
				continue
			}
			targetSet[to] = struct{}{}
		}
		internal[from] = targetSet
	}
	return &StaticTransitionPolicy[S]{graph: internal, allowEmpty: options.allowEmpty}
}

// DefaultActionPolicy returns the action log state machine: pending settles as
// successful or failed, and a failed entry may be requeued.
func DefaultActionPolicy() *StaticTransitionPolicy[ActionStatus] {
	return NewStaticTransitionPolicy(map[ActionStatus][]ActionStatus{
		ActionStatusPending: {ActionStatusSuccessful, ActionStatusFailed},
		ActionStatusFailed:  {ActionStatusPending},
	})
}

// DefaultSyncStatePolicy returns the account sync state machine. The new
// state is stored as the empty string.
func DefaultSyncStatePolicy() *StaticTransitionPolicy[SyncState] {
	return NewStaticTransitionPolicy(map[SyncState][]SyncState{
		SyncStateNew:       {SyncStateRunning, SyncStateStopped, SyncStateInvalid},
		SyncStateRunning:   {SyncStateStopped, SyncStateKilled, SyncStateInvalid, SyncStateConnError},
		SyncStateStopped:   {SyncStateNew, SyncStateRunning, SyncStateInvalid, SyncStateKilled},
		SyncStateKilled:    {SyncStateNew, SyncStateRunning, SyncStateStopped, SyncStateInvalid},
		SyncStateInvalid:   {SyncStateNew, SyncStateStopped},
		SyncStateConnError: {SyncStateNew, SyncStateRunning, SyncStateStopped, SyncStateInvalid, SyncStateKilled},
	}, WithEmptyState())
}

// Validate ensures the target is allowed from the current state.
func (p *StaticTransitionPolicy[S]) Validate(current, target S) error {
	if target == "" && !p.allowEmpty {
		return ErrTransitionNotAllowed
	}
	targets, ok := p.graph[current]
	if !ok {
		return ErrTransitionNotAllowed
	}
	if _, ok := targets[target]; !ok {
		return ErrTransitionNotAllowed
	}
	return nil
}

// AllowedTargets returns the sorted valid targets from the provided state.
func (p *StaticTransitionPolicy[S]) AllowedTargets(current S) []S {
	targets := p.graph[current]
	if len(targets) == 0 {
		return nil
	}
	out := make([]S, 0, len(targets))
	for target := range targets {
		out = append(out, target)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
