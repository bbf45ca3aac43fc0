package sync

import (
	"time"

	"github.com/kcalhq/plansync/internal/diff"
	"github.com/kcalhq/plansync/internal/types"
)

// State is the UI-visible phase of the sync controller.
type State string

const (
	StateIdle           State = "idle"
	StateLoading        State = "loading"
	StateReady          State = "ready"
	StateReadyWithError State = "ready_with_error"
	StateErrorNoData    State = "error_no_data"
)

// IsValid checks if the state value is valid
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateLoading, StateReady, StateReadyWithError, StateErrorNoData:
		return true
	}
	return false
}

// Snapshot is an immutable copy of the controller's observable state.
// Subscribers receive one per transition; fields never alias controller
// internals.
type Snapshot struct {
	State       State
	Plan        *types.Plan
	Err         *types.PlanError
	LastUpdated time.Time
	Loading     bool
	Stale       bool // the plan on display is past its TTL
	Changes     *diff.Summary
}
