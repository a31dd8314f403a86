/*
Package sandbox executes rendered documents in isolated JavaScript runtimes.

# Overview

Each sandbox instance owns exactly one runner bridge and one goja runtime.
The runtime runs the plain JavaScript script regions of a Document in
document order with these globals bound to the instance's bridge:

  - runner.send({command, value}) queues a command for the host
  - runner.listen(fn) registers fn for every inbound event
  - new Sphero(runner) returns the ball-robot command framework
  - console.log/info/warn/error are captured per instance

Script regions typed for other languages (text/coffeescript, text/python)
and external scripts are reported as skipped. An exception in one region
does not stop the next; a timeout or cancellation aborts the rest.

# Concurrency

The runtime is single threaded. Top-level execution and listener callbacks
hold the runtime lock, so callbacks never overlap and run in event arrival
order after the document's scripts finish.

# Usage Example

	manager := sandbox.NewManager(registry, sandbox.DefaultConfig(),
		sandbox.WithLogger(logger),
	)

	inst, err := manager.Create(ctx, sandbox.Request{
		Language: renderer.JavaScript,
		Content:  resource.EditorContent{resource.SlotDefault: "new Sphero(runner).sleep()"},
	})
	if err != nil {
		return err
	}
	unsubscribe := inst.Host().Subscribe(func(msg bridge.CommandMessage) {
		// drive the device
	})
	defer unsubscribe()
*/
package sandbox
