package bridge

// Bridge is the sandbox-side view of a runner bridge
type Bridge interface {
	// Send transmits msg toward the host. Fire-and-forget.
	Send(msg CommandMessage)
	// Listen registers callback for every inbound event
	Listen(callback func(Event))
}

// Host is the host-side view of a runner bridge
type Host interface {
	// Deliver queues an event for the sandbox's listeners
	Deliver(ev Event) error
	// Subscribe registers handler for every outbound command and returns a
	// function that removes it
	Subscribe(handler func(CommandMessage)) (unsubscribe func())
}
