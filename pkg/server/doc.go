// Package server hosts state trees for remote clients.
//
// A Manager owns the live UIs. Each UI wraps a state.Tree and applies client
// batches through an rpc.Dispatcher under its own mutex, so batches for one
// UI never interleave. Every response carries the changes the tree collected
// since the previous response and a sync id that grows by one per response.
//
// Server exposes a Manager over HTTP:
//
//	POST   /ui              create a UI, returns its initial changes
//	POST   /ui/{id}/sync    apply an rpc.Request
//	GET    /ui/{id}/ws      same protocol over a websocket
//	DELETE /ui/{id}         close a UI, saving a snapshot if a store is set
//	POST   /ui/{id}/restore bring a closed UI back from its snapshot
//	GET    /metrics         prometheus metrics
//	GET    /healthz         liveness
package server
