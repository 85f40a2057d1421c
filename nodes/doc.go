// Package nodes provides the built-in node catalog.
//
// Register adds every built-in definition to an engine registry:
//
//	reg := engine.NewRegistry()
//	if err := nodes.Register(reg); err != nil {
//	    return err
//	}
//	eng, err := engine.New(reg, store.NewMemory())
//
// Arithmetic nodes produce float64 values. Control-flow nodes read their
// data inputs through the step call so that a wire from their own
// outputs back into an input is not treated as a cycle.
package nodes
