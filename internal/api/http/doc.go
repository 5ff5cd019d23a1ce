/*
Package http exposes the orchestrator to the view over JSON.

Every entry point of the orchestration facade has a route. Reads return the
full State snapshot; mutations return the snapshot taken after the call so
the view can re-render without a second request. Failures are mapped to
status codes by errors.go.
*/
package http
