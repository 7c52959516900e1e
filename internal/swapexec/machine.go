package swapexec

import (
	"sync"

	"go.uber.org/zap"

	"swapRouter/internal/model"
)

// Params are the swap parameters a submission is bound to. Any change to
// them invalidates in-flight submissions: a confirmation for old parameters
// must never advance the machine after the user changed inputs.
type Params struct {
	TokenIn     string
	TokenOut    string
	AmountIn    string
	SlippageBps uint32
}

func (p Params) equal(other Params) bool {
	return model.NormalizeAddress(p.TokenIn) == model.NormalizeAddress(other.TokenIn) &&
		model.NormalizeAddress(p.TokenOut) == model.NormalizeAddress(other.TokenOut) &&
		p.AmountIn == other.AmountIn &&
		p.SlippageBps == other.SlippageBps
}

// Machine tracks swap execution status with a parameter-snapshot guard
// around transaction submissions. Safe for concurrent use; confirmations
// typically arrive from a different goroutine than parameter edits.
type Machine struct {
	mu        sync.Mutex
	status    Status
	params    Params
	submitted *Params
	lastErr   *ExecError
	logger    *zap.Logger
}

// NewMachine starts in idle.
func NewMachine(logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{status: StatusIdle, logger: logger}
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// LastError returns the classified error recorded by the last Fail, or nil.
func (m *Machine) LastError() *ExecError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// SetParams records the parameters the next submission binds to. A change
// invalidates any in-flight submission snapshot.
func (m *Machine) SetParams(params Params) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.params.equal(params) {
		return
	}
	m.params = params
	if m.submitted != nil {
		m.logger.Debug("parameters changed, in-flight submission invalidated",
			zap.String("status", string(m.status)),
		)
		m.submitted = nil
	}
}

// Params returns the current parameters.
func (m *Machine) Params() Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.params
}

// Fire applies an event through the transition table.
func (m *Machine) Fire(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fireLocked(event)
}

func (m *Machine) fireLocked(event Event) error {
	next, err := Transition(m.status, event)
	if err != nil {
		return err
	}
	m.logger.Debug("status transition",
		zap.String("from", string(m.status)),
		zap.String("event", string(event)),
		zap.String("to", string(next)),
	)
	m.status = next
	if event == EventReset || event == EventQuoteReady {
		m.lastErr = nil
		m.submitted = nil
	}
	return nil
}

// MarkSubmitted fires the given submission event and snapshots the current
// parameters, binding the pending confirmation to them.
func (m *Machine) MarkSubmitted(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fireLocked(event); err != nil {
		return err
	}
	snapshot := m.params
	m.submitted = &snapshot
	return nil
}

// Confirm fires the given confirmation event only if the submission
// snapshot still matches the current parameters. It returns false when the
// confirmation is stale and was dropped; the status is left untouched.
func (m *Machine) Confirm(event Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitted == nil || !m.submitted.equal(m.params) {
		m.logger.Info("dropping confirmation for superseded parameters",
			zap.String("event", string(event)),
			zap.String("status", string(m.status)),
		)
		return false, nil
	}
	if err := m.fireLocked(event); err != nil {
		return false, err
	}
	m.submitted = nil
	return true, nil
}

// Fail records the classified error and moves to the error status.
func (m *Machine) Fail(execErr *ExecError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastErr = execErr
	m.submitted = nil
	// EventFailed is legal from every status.
	next, _ := Transition(m.status, EventFailed)
	m.logger.Warn("execution failed",
		zap.String("from", string(m.status)),
		zap.String("kind", string(execErr.Kind)),
		zap.Error(execErr.Err),
	)
	m.status = next
}

// Reset returns to idle, clearing params, snapshot, and error.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusIdle
	m.params = Params{}
	m.submitted = nil
	m.lastErr = nil
}
