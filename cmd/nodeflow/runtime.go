package main

import (
	"context"
	"path/filepath"

	"github.com/kbukum/nodeflow/bootstrap"
	"github.com/kbukum/nodeflow/document"
	"github.com/kbukum/nodeflow/engine"
	"github.com/kbukum/nodeflow/graph"
	"github.com/kbukum/nodeflow/logger"
	"github.com/kbukum/nodeflow/nodes"
	"github.com/kbukum/nodeflow/observability"
	"github.com/kbukum/nodeflow/store"
	"github.com/kbukum/nodeflow/store/badgerstore"
)

// runtime holds everything a command works with once the app has started.
type runtime struct {
	app *bootstrap.App[*AppConfig]

	store   store.Store
	metrics *observability.Metrics
	engine  *engine.Engine
	loader  document.Loader

	// Set when a document path was given.
	doc   *document.Document
	graph *graph.Graph
}

// newRuntime creates the app for cfg and registers the start hooks that
// open telemetry, the store, the engine and, when docPath is set, the
// document.
func newRuntime(cfg *AppConfig, docPath string, opts ...bootstrap.Option) (*runtime, error) {
	app, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}
	rt := &runtime{app: app}

	dirs := append([]string{}, cfg.IncludeDirs...)
	if docPath != "" {
		dirs = append([]string{filepath.Dir(docPath)}, dirs...)
	}
	rt.loader = document.NewFileLoader(dirs...)

	app.OnStart(rt.startTelemetry, rt.openStore, rt.startEngine)
	if docPath != "" {
		app.OnStart(func(ctx context.Context) error {
			return rt.loadDocument(docPath)
		})
	}
	return rt, nil
}

func (rt *runtime) startTelemetry(ctx context.Context) error {
	cfg := rt.app.Cfg
	if !cfg.Telemetry.Enabled {
		return nil
	}
	tel, err := observability.Setup(ctx, cfg.Telemetry, observability.Resource{
		Service:     cfg.Name,
		Version:     rt.app.Version,
		Environment: cfg.Environment,
	})
	if err != nil {
		return err
	}
	rt.app.OnStop(tel.Shutdown)
	rt.metrics = tel.Metrics
	return nil
}

func (rt *runtime) openStore(ctx context.Context) error {
	cfg := rt.app.Cfg.Store
	if cfg.Backend != BackendBadger {
		mem := store.NewMemory()
		rt.store = mem
		rt.app.AddHealthCheck("store", mem)
		return nil
	}

	bs, err := badgerstore.Open(cfg.Badger)
	if err != nil {
		return err
	}
	rt.app.OnStop(func(context.Context) error { return bs.Close() })
	rt.store = bs
	rt.app.AddHealthCheck("store", bs)
	rt.app.Logger.Debug("Badger store opened", map[string]interface{}{
		"path":      cfg.Badger.Path,
		"in_memory": cfg.Badger.InMemory,
		"entries":   len(bs.Keys()),
	})
	return nil
}

func (rt *runtime) startEngine(ctx context.Context) error {
	cfg := rt.app.Cfg
	reg := nodes.NewRegistry()
	reg.Use(engine.LogNodes(logger.Get("nodes")))
	if cfg.Telemetry.Enabled {
		reg.Use(engine.TraceNodes(), engine.MeterNodes(rt.metrics))
	}

	e, err := engine.New(reg, rt.store,
		engine.WithConfig(cfg.Engine),
		engine.WithLogger(rt.app.Logger.WithComponent("engine")),
		engine.WithMetrics(rt.metrics),
		engine.WithServiceName(cfg.Name),
	)
	if err != nil {
		return err
	}
	rt.engine = e
	return nil
}

// loadDocument builds the document at path and applies its store entries
// and breakpoints.
func (rt *runtime) loadDocument(path string) error {
	doc, err := document.LoadFile(path)
	if err != nil {
		return err
	}
	g, err := document.Build(doc, rt.engine.Registry(), rt.loader)
	if err != nil {
		return err
	}
	if err := document.Apply(rt.engine, doc, document.KeepStore(rt.app.Cfg.Store.Persistent())); err != nil {
		return err
	}
	rt.doc, rt.graph = doc, g
	rt.app.Logger.Debug("Document loaded", map[string]interface{}{
		"document": doc.Name,
		"nodes":    len(g.Nodes),
	})
	return nil
}
