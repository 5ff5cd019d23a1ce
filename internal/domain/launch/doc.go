// Package launch arbitrates launch and kill requests across instances.
//
// Each instance moves through Idle, Launching and Running. A launch claims
// a launching marker that outlives the backend call by a short cosmetic
// delay; under PolicySingleFlight that marker blocks every other launch.
// Kill only forwards intent: Running clears when the backend says so.
package launch
