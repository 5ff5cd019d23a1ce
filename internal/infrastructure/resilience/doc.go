/*
Package resilience provides a circuit breaker for calls to the backend
command interface.

# Overview

When the backend stops answering, every poll tick and every view action
would otherwise wait out its own timeout. The breaker fails those calls fast
until the backend recovers.

# Usage

	breaker := resilience.New("backend", resilience.Settings{
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || backend.IsCommandError(err)
		},
	})

	err := breaker.Do(func() error {
		return client.call(ctx)
	})

Application-level command failures ("user not found") should be reported as
successful through IsSuccessful so that only transport failures trip the
breaker.

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
