// Package orchestrator composes task tracking, launch arbitration, account
// sessions and presence sync behind one surface.
//
// The view reads State through Snapshot or Subscribe and acts only through
// the Orchestrator's entry points. Signing in starts presence polling and
// signing out stops it; a completed task refreshes the instance list; a
// stopped-instance event clears its Running phase.
package orchestrator
