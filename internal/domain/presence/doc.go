/*
Package presence keeps the social view of the active account in sync.

While a session is active the Synchronizer registers the account with the
friends system once, then polls friends and friend requests immediately and
on every interval. A tick that finds the previous poll still running is
skipped, and concurrent reloads from different call sites share a single
backend call. Friends are stable-sorted in-game, online, offline, and every
successful fetch bumps UpdateKey.

Accepting or rejecting a request holds a single processing slot; every
other accept or reject is refused until it is released. Friend removal is
staged first and confirmed separately.

Add-friend failures are classified for display:

	"sent you a friend request" -> check-your-requests
	"already sent"              -> already-sent
	"not found"                 -> user-not-found
	"already friends"           -> already-friends

Anything else is shown as the backend worded it.
*/
package presence
