/*
Package redisrelay mirrors sandbox bridges onto Redis Pub/Sub.

For a sandbox sbx_01H... and prefix "runner" the relay uses two channels:

	runner:sbx_01H...:commands   every command the sandbox sends, as JSON
	runner:sbx_01H...:events     events published here are delivered to the sandbox

This lets device hosts run as separate processes. The relay attaches to a
bridge like any other host, so it receives commands in order and counts as
a subscriber for queue flushing.

Each attachment publishes from its own goroutine through a bounded buffer,
so a slow Redis never holds up other hosts of the same bridge. Publishing
goes through a circuit breaker. While Redis is unreachable, or the buffer
is full, commands are dropped and counted.
*/
package redisrelay
