// Package document loads persisted node graphs from YAML or JSON files.
//
// A document carries the node list, connections, global-store entries and
// breakpoints of one editing session. Nodes that own a sub-graph may either
// inline it or name another document with include; includes are resolved
// recursively and circular includes are rejected.
//
// The engine never reads documents itself. Build turns a document into a
// graph.Graph and Apply restores its store entries and breakpoints on an
// engine.
package document
