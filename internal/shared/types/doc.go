// Package types provides shared data structures for the launcher core.
//
// These types are the wire shapes returned by the backend command interface
// and the read-only snapshots handed to the view layer.
//
// Core Types:
//   - Instance, InstanceRunState, Phase: installations and their run phase
//   - Task, TaskKind, TaskStatus, ProgressSource: long-running operations
//   - Account: signed-in accounts
//   - Friend, PresenceStatus, FriendRequest, PendingRemoval: social layer
//
// Example Usage:
//
//	state := types.InstanceRunState{
//	    Name:  "Vanilla 1.20",
//	    Phase: types.PhaseLaunching,
//	}
package types
