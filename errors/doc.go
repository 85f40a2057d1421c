// Package errors provides the structured error type shared by the engine,
// the document loader and the HTTP surface.
//
// Every terminal failure of an evaluation pass is an *AppError whose Code is
// the pass's terminal reason. HTTPStatus carries the recommended status for
// the debug API and Retryable marks faults a caller may simply re-run.
package errors
