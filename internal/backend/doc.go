/*
Package backend invokes the launcher backend's command interface.

Every command is a POST to {base}/invoke/{command} with a JSON argument
object. The backend answers with an envelope:

	{"ok": true,  "data": ...}
	{"ok": false, "error": "User not found"}

A rejected command surfaces as *Error carrying the opaque message. Transport
failures wrap ErrTransport and count against a circuit breaker; rejections
do not. Calls are rate limited and tagged with an X-Request-ID header.

The Commands interface is split into Instances, Accounts and Social so
consumers can depend on the narrowest slice they use.
*/
package backend
