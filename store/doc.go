// Package store provides the global keyed value store shared by every pass
// of a document.
//
// State-variable nodes address entries by a user-chosen key; channel nodes
// use the reserved "channel:" namespace built by ChannelKey. Entries are
// created on first write and survive across passes until deleted, cleared
// or replaced by a document load.
//
// Memory is the default implementation. badgerstore provides a durable
// write-through variant.
package store
