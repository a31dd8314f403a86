/*
Package bridge defines the runner bridge: the message channel between a
sandboxed document and the host that owns the real device.

# Contract

  - Send transmits a CommandMessage toward the host. It never blocks and
    never fails; a closed or disconnected bridge drops the message and logs.
  - Listen registers a callback for inbound events. Registrations are
    additive: every callback sees every event, in registration order.

Each direction is FIFO. There is no ordering guarantee across directions.
The bridge never interprets command or event content.

# Channel

Channel is the in-process implementation, one per sandbox instance. The
sandbox side uses Send and Listen; host transports (websocket, Redis relay)
use Subscribe and Deliver. Commands sent before any host subscribes are
queued and flushed to the first subscriber. Listener callbacks run on a
single dispatcher goroutine, one event at a time.

# Wire format

	{"command": "move", "value": {"speed": 100, "heading": 90}}

Optional parameters that were not supplied are omitted from value; they are
never encoded as null.
*/
package bridge
