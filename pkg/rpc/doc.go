// Package rpc applies client invocations to a state tree.
//
// The client sends batches of invocations: property writes ("mSync") and DOM
// events ("event"). A Handler validates and decodes one invocation into a
// deferred action. The Dispatcher gates the whole batch before running any
// action, so a rejected invocation leaves the tree untouched.
//
// Property writes are rejected unless the property map's update filter or a
// property synchronization registration allows the key. Writes to disabled
// nodes are dropped, and logged, unless the key is synchronized with
// state.Always.
package rpc
