// Package scenario runs YAML-described conversations against a relay.
//
// A scenario is a list of steps acting on named client connections:
//
//	name: planner-to-unit-t
//	steps:
//	  - action: connect
//	    client: t
//	  - action: connect
//	    client: p
//	  - action: wait_registered
//	    units: [t]
//	    planner: true
//	  - action: send
//	    client: p
//	    data: "t:go"
//	  - action: expect
//	    client: t
//	    data: go
//
// Each scenario gets a fresh in-process relay and scene stub, built with the
// same service wiring as `rcarelay serve`. Pointed at an external relay, the
// steps that need to look inside the relay or the scene (wait_registered and
// expect_scene) are reported as skipped.
//
// Expectations match the byte stream a client has received, so they hold
// whether TCP delivers two writes as one read or one write as two.
//
// The built-in scenarios live in scenarios/ and are embedded in the binary.
package scenario
