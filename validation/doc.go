// Package validation checks request bodies, documents, configuration and
// the config maps of individual nodes. Every failure is an INVALID_INPUT
// AppError whose details list the rejected fields.
//
// Structs use go-playground/validator tags; field paths follow the json,
// yaml or mapstructure spelling of the source:
//
//	type Connection struct {
//	    FromNode string `json:"fromNode" validate:"required"`
//	}
//	err := validation.Validate(&doc) // "connections[0].fromNode: is required"
//
// Node definitions check their config with ForNode:
//
//	err := validation.ForNode(node.ID).OneOf("operator", op, "==", "!=").Err()
package validation
