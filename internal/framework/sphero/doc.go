/*
Package sphero translates ball-robot operations into runner bridge commands.

Every operation sends exactly one bridge.CommandMessage whose command equals
the operation name. Optional parameters left as opt.None are omitted from
the value object:

	s := sphero.New(runner, logger)
	s.Move(100, opt.Some(90), opt.Some(true), opt.Some(50))
	// {"command":"move","value":{"delay":50,"heading":90,"speed":100,"state":true}}
	s.Stop(opt.None[int]())
	// {"command":"stop","value":{}}

Parameter ranges (colour 0-255, brightness 0-100, speed 0-255, heading
0-359) are enforced by the device, not here.
*/
package sphero
