// Package logger provides structured logging for nodeflow on top of zerolog.
//
// Output is JSON or a compact console format. Each subsystem asks for its
// own logger with Get, which tags lines with the component name and applies
// a per-component level when one is configured:
//
//	logging:
//	  level: info
//	  format: json
//	  components:
//	    engine: debug
//
//	log := logger.Get("engine")
//	log.Info("pass completed", logger.Fields(logger.FieldPassID, id, "steps", 12))
package logger
