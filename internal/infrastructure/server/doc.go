// Package server assembles the launcher core: configuration, logging,
// metrics, the backend client, the event stream, the orchestrator and the
// gin view API.
package server
