package server

import (
	"context"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/nodeflow/document"
	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/graph"
	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/server/middleware"
	"github.com/kbukum/nodeflow/sse"
	"github.com/kbukum/nodeflow/validation"
)

// API exposes the engine entry points and debug controls to an editor.
// It holds the currently loaded document; every pass runs against its
// graph.
type API struct {
	engine *engine.Engine
	loader document.Loader
	log    *logger.Logger
	events *sse.Hub

	keepStore bool

	mu    sync.RWMutex
	doc   *document.Document
	graph *graph.Graph
}

// NewAPI creates an API over e. Includes in uploaded documents are
// resolved through loader, which may be nil.
func NewAPI(e *engine.Engine, loader document.Loader, log *logger.Logger) *API {
	return &API{engine: e, loader: loader, log: log.WithComponent("api")}
}

// WithEvents publishes pass outcomes and session changes to hub and
// serves them on GET /v1/events.
func (a *API) WithEvents(hub *sse.Hub) *API {
	a.events = hub
	return a
}

// WithPersistentStore keeps the store entries when a document without a
// store section is loaded. Use it for stores that outlive the process.
func (a *API) WithPersistentStore(keep bool) *API {
	a.keepStore = keep
	return a
}

// ResolveRequest names the data output to resolve.
type ResolveRequest struct {
	NodeID string `json:"nodeId" validate:"required"`
	PortID string `json:"portId" validate:"required"`
}

// ResolveResponse carries the resolved value and the pass record.
type ResolveResponse struct {
	Value any               `json:"value"`
	Meta  *engine.MetaState `json:"meta"`
}

// Load builds doc and makes it the current document, restoring its store
// entries and breakpoints on the engine.
func (a *API) Load(doc *document.Document) error {
	g, err := document.Build(doc, a.engine.Registry(), a.loader)
	if err != nil {
		return err
	}
	if err := document.Apply(a.engine, doc, document.KeepStore(a.keepStore)); err != nil {
		return err
	}
	a.Use(doc, g)
	a.publish(sse.EventGraph, gin.H{"name": doc.Name, "nodes": len(g.Nodes)})
	a.publish(sse.EventBreakpoints, a.engine.Breakpoints())
	a.publishStore()
	a.log.Info("Document loaded", map[string]interface{}{
		"document": doc.Name,
		"nodes":    len(g.Nodes),
	})
	return nil
}

// Use makes an already built document current without touching the
// engine's store or breakpoints.
func (a *API) Use(doc *document.Document, g *graph.Graph) {
	a.mu.Lock()
	a.doc, a.graph = doc, g
	a.mu.Unlock()
}

func (a *API) current() (*graph.Graph, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.graph == nil {
		return nil, errors.NotFound("document", "current")
	}
	return a.graph, nil
}

// Register mounts the API routes on r.
func (a *API) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.GET("/node-types", a.nodeTypes)
	v1.GET("/graph", a.getGraph)
	v1.PUT("/graph", a.putGraph)

	v1.POST("/resolve", a.resolve)
	v1.POST("/flows", a.startFlow)
	v1.GET("/flows/active", a.activeFlow)
	v1.POST("/flows/active/resume", a.resume)
	v1.POST("/flows/active/step-over", a.stepOver)
	v1.POST("/flows/active/cancel", a.cancel)

	v1.GET("/breakpoints", a.listBreakpoints)
	v1.DELETE("/breakpoints", a.clearBreakpoints)
	v1.PUT("/breakpoints/:node", a.setBreakpoint)
	v1.DELETE("/breakpoints/:node", a.clearBreakpoint)

	v1.GET("/store", a.getStore)
	v1.DELETE("/store", a.clearStore)
	v1.DELETE("/store/:key", a.deleteStoreKey)

	v1.GET("/events", a.streamEvents)
}

func (a *API) nodeTypes(c *gin.Context) {
	RespondOK(c, a.engine.Registry().List())
}

func (a *API) getGraph(c *gin.Context) {
	a.mu.RLock()
	doc := a.doc
	a.mu.RUnlock()
	if doc == nil {
		RespondWithError(c, errors.NotFound("document", "current"))
		return
	}
	out := *doc
	document.Capture(a.engine, &out)
	out.Store = JSONSafe(out.Store).(map[string]any)
	RespondOK(c, out)
}

func (a *API) putGraph(c *gin.Context) {
	var doc document.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		RespondWithError(c, errors.InvalidFormat("document", "JSON").WithCause(err))
		return
	}
	if err := validation.Validate(&doc); err != nil {
		RespondWithError(c, err)
		return
	}
	if err := a.Load(&doc); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (a *API) resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidFormat("request", "JSON").WithCause(err))
		return
	}
	if err := validation.Validate(&req); err != nil {
		RespondWithError(c, err)
		return
	}
	g, err := a.current()
	if err != nil {
		RespondWithError(c, err)
		return
	}
	v, meta, err := a.engine.ResolveSingleOutput(c.Request.Context(), g, req.NodeID, req.PortID)
	if meta == nil {
		RespondWithError(c, err)
		return
	}
	resp := ResolveResponse{Value: JSONSafe(v), Meta: SafeMeta(meta)}
	c.Header(middleware.PassIDHeader, resp.Meta.PassID)
	a.publish(sse.EventPass, resp)
	RespondOK(c, resp)
}

func (a *API) startFlow(c *gin.Context) {
	var req engine.FlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, errors.InvalidFormat("request", "JSON").WithCause(err))
		return
	}
	g, err := a.current()
	if err != nil {
		RespondWithError(c, err)
		return
	}
	meta, err := a.engine.StartExecutionFlow(c.Request.Context(), g, req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	a.respondPass(c, meta)
}

func (a *API) activeFlow(c *gin.Context) {
	meta, ok := a.engine.Active()
	if !ok {
		RespondWithError(c, errors.NotFound("flow", "active"))
		return
	}
	RespondOK(c, SafeMeta(meta))
}

func (a *API) resume(c *gin.Context) {
	a.continueFlow(c, a.engine.Resume)
}

func (a *API) stepOver(c *gin.Context) {
	a.continueFlow(c, a.engine.StepOver)
}

func (a *API) continueFlow(c *gin.Context, next func(context.Context) (*engine.MetaState, error)) {
	meta, err := next(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	a.respondPass(c, meta)
}

func (a *API) cancel(c *gin.Context) {
	meta, ok := a.engine.Cancel()
	switch {
	case !ok:
		RespondWithError(c, errors.Conflict("no pass is active"))
	case meta == nil:
		// The running pass stops at its next poll point and answers its
		// own caller.
		RespondAccepted(c, gin.H{"cancelled": true})
	default:
		a.respondPass(c, meta)
	}
}

func (a *API) listBreakpoints(c *gin.Context) {
	RespondOK(c, a.engine.Breakpoints())
}

func (a *API) clearBreakpoints(c *gin.Context) {
	a.engine.ClearBreakpoints()
	a.publish(sse.EventBreakpoints, a.engine.Breakpoints())
	RespondNoContent(c)
}

func (a *API) setBreakpoint(c *gin.Context) {
	a.engine.SetBreakpoint(c.Param("node"))
	a.publish(sse.EventBreakpoints, a.engine.Breakpoints())
	RespondNoContent(c)
}

func (a *API) clearBreakpoint(c *gin.Context) {
	if !a.engine.ClearBreakpoint(c.Param("node")) {
		RespondWithError(c, errors.NotFound("breakpoint", c.Param("node")))
		return
	}
	a.publish(sse.EventBreakpoints, a.engine.Breakpoints())
	RespondNoContent(c)
}

func (a *API) getStore(c *gin.Context) {
	RespondOK(c, JSONSafe(a.engine.Store().Snapshot()))
}

func (a *API) clearStore(c *gin.Context) {
	if err := a.engine.Store().Clear(); err != nil {
		RespondWithError(c, err)
		return
	}
	a.publishStore()
	RespondNoContent(c)
}

func (a *API) deleteStoreKey(c *gin.Context) {
	key := c.Param("key")
	if _, ok := a.engine.Store().Get(key); !ok {
		RespondWithError(c, errors.NotFound("store entry", key))
		return
	}
	if err := a.engine.Store().Delete(key); err != nil {
		RespondWithError(c, err)
		return
	}
	a.publishStore()
	RespondNoContent(c)
}

func (a *API) streamEvents(c *gin.Context) {
	if a.events == nil {
		RespondWithError(c, errors.NotFound("event stream", ""))
		return
	}
	var types []string
	if q := c.Query("types"); q != "" {
		types = strings.Split(q, ",")
	}
	sse.ServeSSE(a.events, c.Writer, c.Request, uuid.NewString(), types...)
}

// respondPass answers with the pass outcome and publishes it together with
// the store it may have changed.
func (a *API) respondPass(c *gin.Context, meta *engine.MetaState) {
	meta = SafeMeta(meta)
	c.Header(middleware.PassIDHeader, meta.PassID)
	a.publish(sse.EventPass, meta)
	a.publishStore()
	RespondOK(c, meta)
}

func (a *API) publishStore() {
	if a.events != nil {
		a.publish(sse.EventStore, JSONSafe(a.engine.Store().Snapshot()))
	}
}

func (a *API) publish(typ string, v any) {
	if a.events == nil {
		return
	}
	e, err := sse.NewEvent(typ, v)
	if err != nil {
		a.log.Warn("Event not encodable", map[string]interface{}{
			"type":  typ,
			"error": err.Error(),
		})
		return
	}
	a.events.Publish(e)
}

// SafeMeta makes the committed iteration output of m encodable and returns m.
func SafeMeta(m *engine.MetaState) *engine.MetaState {
	m.IterationOutput = JSONSafe(m.IterationOutput)
	return m
}
