package orchestrator

import (
	"fmt"
	"sync"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"golang.org/x/xerrors"
)

type State uint8

const (
	StateInit State = iota
	StateRunning
	StateDraining
	StateDone
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	case StateFatal:
		return "fatal"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFatal
}

var allowedTransitions = map[State][]State{
	StateInit:     {StateRunning, StateDone, StateFatal},
	StateRunning:  {StateDraining, StateFatal},
	StateDraining: {StateDone, StateFatal},
}

type stateMachine struct {
	mu  sync.Mutex
	cur State
}

func (m *stateMachine) get() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

func (m *stateMachine) transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range allowedTransitions[m.cur] {
		if s == to {
			m.cur = to
			return nil
		}
	}
	return xerrors.Errorf("%w: %v -> %v", common_errors.ErrInvalidStateTransition, m.cur, to)
}
