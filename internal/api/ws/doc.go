// Package ws pushes orchestrator state to the view over WebSocket.
//
// Every connection receives the current snapshot on connect and a fresh one
// after each change. A slow client only ever gets the latest snapshot;
// intermediate ones are dropped.
//
// Message Types (Server → Client):
//   - state: full State snapshot
//
// Message Types (Client → Server):
//   - ping: answered with pong
//
// Example Usage:
//
//	hub := ws.NewHub(orch, metrics, logger)
//	defer hub.Close()
//	router.GET("/stream", hub.HandleConnection)
package ws
