/*
Package task tracks long-running backend operations (instance creation and
duplication) from start to dismissal.

A Tracker listens on both progress channels through one merge function and
falls back to synthetic progress when the backend stays silent:

	0 ms      Start: Active, grace and deadline timers armed
	2000 ms   no real event yet: synthetic ticks every 300 ms, +(0,15], capped at 90
	5000 ms   still no real event: progress forced to 100, Succeeded
	+settle   onComplete (1500 ms after a real 100, 2000 ms after a forced one)

The first matching real event latches the tracker to real progress and
stops every synthetic timer. Progress never decreases.

Registry keeps at most one tracker per target and forgets it on completion
or dismissal.
*/
package task
