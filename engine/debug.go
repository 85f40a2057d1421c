package engine

import (
	"context"
	"sort"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/logger"
)

// SetBreakpoint pauses flows before the node runs.
func (e *Engine) SetBreakpoint(nodeID string) {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	e.breakpoints[nodeID] = struct{}{}
}

// ClearBreakpoint removes a breakpoint and reports whether it was set.
func (e *Engine) ClearBreakpoint(nodeID string) bool {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	_, ok := e.breakpoints[nodeID]
	delete(e.breakpoints, nodeID)
	return ok
}

// SetBreakpoints replaces the breakpoint set.
func (e *Engine) SetBreakpoints(nodeIDs []string) {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	e.breakpoints = make(map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		e.breakpoints[id] = struct{}{}
	}
}

// ClearBreakpoints removes every breakpoint.
func (e *Engine) ClearBreakpoints() {
	e.SetBreakpoints(nil)
}

// Breakpoints returns the sorted breakpoint set.
func (e *Engine) Breakpoints() []string {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	ids := make([]string, 0, len(e.breakpoints))
	for id := range e.breakpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) hasBreakpoint(nodeID string) bool {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	_, ok := e.breakpoints[nodeID]
	return ok
}

// Resume continues the paused flow with breakpoint-checked stepping.
func (e *Engine) Resume(ctx context.Context) (*MetaState, error) {
	return e.continuePaused(ctx, ModeContinue, "resume")
}

// StepOver runs exactly the pending hop of the paused flow and pauses
// again before the next one.
func (e *Engine) StepOver(ctx context.Context) (*MetaState, error) {
	return e.continuePaused(ctx, ModeStep, "step_over")
}

func (e *Engine) continuePaused(ctx context.Context, mode Mode, op string) (*MetaState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ctlMu.Lock()
	r := e.paused
	if r != nil {
		e.paused = nil
		e.running = r.ctl
		e.runningID = r.meta.PassID
	}
	e.ctlMu.Unlock()
	if r == nil {
		return nil, errors.Conflict("no flow is paused")
	}

	r.mode = mode
	r.release = true
	return e.runFlow(ctx, r, op)
}

// Cancel stops the active pass. A running pass stops at its next poll
// point and its caller receives the final state. A paused pass goes idle
// at once and its state is returned. ok is false when nothing is active.
func (e *Engine) Cancel() (paused *MetaState, ok bool) {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	if e.running != nil {
		e.running.cancelled.Store(true)
		return nil, true
	}
	if e.paused != nil {
		r := e.paused
		e.paused = nil
		r.meta.cancel()
		return r.meta.Clone(), true
	}
	return nil, false
}

// Active returns the paused flow's state, or a summary of the running
// pass.
func (e *Engine) Active() (*MetaState, bool) {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	if e.paused != nil {
		return e.paused.meta.Clone(), true
	}
	if e.running != nil {
		return &MetaState{PassID: e.runningID, Status: StatusRunning, Logs: []LogEntry{}, Trace: []string{}, Path: []string{}}, true
	}
	return nil, false
}

// supersedePaused drops a paused flow when a new flow starts.
func (e *Engine) supersedePaused() {
	e.ctlMu.Lock()
	defer e.ctlMu.Unlock()
	if e.paused == nil {
		return
	}
	r := e.paused
	e.paused = nil
	r.meta.cancel()
	e.log.Warn("paused flow superseded", logger.Fields(logger.FieldPassID, r.meta.PassID))
}
