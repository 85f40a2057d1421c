package engine

import (
	"fmt"
	"time"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/store"
)

// Status is the lifecycle state of a pass.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Severity tags a log entry.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// LogEntry is one timestamped line of a pass log.
type LogEntry struct {
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	NodeID   string    `json:"nodeId,omitempty"`
	Message  string    `json:"message"`
}

// Hop is one pending traversal of an execution connection.
type Hop struct {
	OutputPort string           `json:"outputPort,omitempty"`
	Connection graph.Connection `json:"connection"`
}

// MetaState is the per-pass record returned to callers.
type MetaState struct {
	PassID string `json:"passId"`
	Status Status `json:"status"`
	// Reason is the terminal reason code of an error or cancelled pass.
	Reason errors.ErrorCode `json:"reason,omitempty"`
	Error  *errors.AppError `json:"error,omitempty"`
	Logs   []LogEntry       `json:"logs"`

	Depth       int      `json:"depth"`
	MaxDepth    int      `json:"maxDepth"`
	Steps       int      `json:"steps"`
	StepCeiling int      `json:"stepCeiling"`
	Trace       []string `json:"trace"`
	Path        []string `json:"path"`

	PausedNode string `json:"pausedNode,omitempty"`
	PendingHop *Hop   `json:"pendingHop,omitempty"`
	// IterationOutput is the value most recently committed by an
	// iteration result node.
	IterationOutput any `json:"iterationOutput,omitempty"`

	Store store.Store `json:"-"`

	log    *logger.Logger
	logged map[*errors.AppError]bool
}

func newMeta(passID string, cfg Config, st store.Store, log *logger.Logger) *MetaState {
	return &MetaState{
		PassID:      passID,
		Status:      StatusIdle,
		MaxDepth:    cfg.MaxDepth,
		StepCeiling: cfg.StepCeiling,
		Store:       st,
		log:         log.WithFields(logger.Fields(logger.FieldPassID, passID)),
		logged:      make(map[*errors.AppError]bool),
	}
}

// Log appends an entry and mirrors it to the engine logger.
func (m *MetaState) Log(sev Severity, nodeID, msg string) {
	m.Logs = append(m.Logs, LogEntry{Time: time.Now(), Severity: sev, NodeID: nodeID, Message: msg})
	if m.log == nil {
		return
	}
	var fields map[string]interface{}
	if nodeID != "" {
		fields = logger.Fields(logger.FieldNodeID, nodeID)
	}
	switch sev {
	case SeverityError:
		m.log.Error(msg, fields)
	case SeverityWarn:
		m.log.Warn(msg, fields)
	default:
		m.log.Info(msg, fields)
	}
}

// Infof appends an info entry.
func (m *MetaState) Infof(nodeID, format string, args ...any) {
	m.Log(SeverityInfo, nodeID, fmt.Sprintf(format, args...))
}

// Warnf appends a warning entry.
func (m *MetaState) Warnf(nodeID, format string, args ...any) {
	m.Log(SeverityWarn, nodeID, fmt.Sprintf(format, args...))
}

// Errorf appends an error entry.
func (m *MetaState) Errorf(nodeID, format string, args ...any) {
	m.Log(SeverityError, nodeID, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any error entry was logged.
func (m *MetaState) HasErrors() bool {
	for _, e := range m.Logs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// logFailure logs err once no matter how many frames it crosses.
func (m *MetaState) logFailure(nodeID string, err *errors.AppError) {
	if m.logged[err] {
		return
	}
	m.logged[err] = true
	m.Log(SeverityError, nodeID, err.Error())
}

// fail moves the pass to error status.
func (m *MetaState) fail(err *errors.AppError) {
	nodeID, _ := err.Details["node"].(string)
	m.logFailure(nodeID, err)
	m.Status = StatusError
	m.Reason = err.Code
	m.Error = err
	m.PausedNode = ""
	m.PendingHop = nil
}

// cancel moves the pass to idle after a cooperative cancellation.
func (m *MetaState) cancel() {
	m.Log(SeverityWarn, m.PausedNode, "pass cancelled")
	m.Status = StatusIdle
	m.Reason = errors.ErrCodeCancelled
	m.PausedNode = ""
	m.PendingHop = nil
}

// fork returns the meta-state of a nested sub-pass. It shares the store,
// depth budget and failure bookkeeping but has its own log and trace.
func (m *MetaState) fork() *MetaState {
	return &MetaState{
		PassID:          m.PassID,
		Status:          StatusRunning,
		Depth:           m.Depth,
		MaxDepth:        m.MaxDepth,
		Steps:           m.Steps,
		StepCeiling:     m.StepCeiling,
		IterationOutput: m.IterationOutput,
		Store:           m.Store,
		log:             m.log,
		logged:          m.logged,
	}
}

// mergeErrors copies the error entries of a sub-pass into m and clears
// the sub-pass log.
func (m *MetaState) mergeErrors(sub *MetaState) {
	for _, e := range sub.Logs {
		if e.Severity == SeverityError {
			m.Logs = append(m.Logs, e)
		}
	}
	sub.Logs = nil
	sub.Trace = nil
}

// Clone returns a copy safe to hand to callers.
func (m *MetaState) Clone() *MetaState {
	c := *m
	c.Logs = append([]LogEntry{}, m.Logs...)
	c.Trace = append([]string{}, m.Trace...)
	c.Path = append([]string{}, m.Path...)
	if m.PendingHop != nil {
		h := *m.PendingHop
		c.PendingHop = &h
	}
	c.log = nil
	c.logged = nil
	return &c
}
