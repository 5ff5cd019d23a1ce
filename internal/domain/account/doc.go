// Package account multiplexes signed-in accounts and the active session.
package account
