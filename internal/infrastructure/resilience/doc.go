/*
Package resilience provides a circuit breaker for outbound transports.

The Redis relay publishes every sandbox command through a Breaker, so a
broker outage turns into fast counted drops rather than a publish timeout
per command.

	breaker := resilience.New("redis-relay", resilience.Settings{
		Cooldown:   10 * time.Second,
		ShouldTrip: resilience.ConsecutiveFailures(3),
	})

	err := breaker.Do(func() error {
		return client.Publish(ctx, channel, payload).Err()
	})

Callers that cannot wrap the call in a closure use Allow and report the
outcome themselves.

# States

	Closed --[ShouldTrip]-> Open --[Cooldown]-> Half-Open --[TrialRequests successes]-> Closed
	                                               |
	                                           [failure]
	                                               v
	                                             Open
*/
package resilience
