// Package state implements the server-authoritative state tree for nodesync.
//
// The tree is the single source of truth for everything a client renders.
// Each Node is identified by a process-unique integer id and carries a sparse
// set of features, one per FeatureKind, created lazily on first access.
//
// # Features
//
//   - ElementData: tag name, owning component and other element metadata
//   - ElementPropertyMap: synchronizable key/value properties, including
//     nested model maps and model lists
//   - NodeList: ordered child nodes (element children and model lists)
//   - ElementListenerMap: DOM event listeners and property synchronization
//     registrations that opt keys in for client updates
//
// Feature kinds map to compact wire ids through a fixed registry, see
// FeatureID and KindForID.
//
// # Trees
//
// A Tree owns a root node and an arena of every node attached below it. Node
// ids are only resolvable through the arena while the node is attached, so a
// node removed from the tree can no longer be addressed by a client.
//
// Property writes and list mutations are tracked per node and drained with
// Tree.CollectChanges for the next response to the client.
//
// # Client updates
//
// ElementPropertyMap.DeferredUpdateFromClient validates that a key may be
// written by the client and returns the write as a deferred action. Callers
// validate a whole batch first and run the actions afterwards.
//
// # Thread Safety
//
// Nothing in this package locks. A tree and all of its nodes belong to one
// UI and must only be touched while holding that UI's lock.
package state
