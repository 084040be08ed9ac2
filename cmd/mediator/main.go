// Command mediator is the guardrail hook mediator: a short-lived process
// the host spawns once per hook invocation. With no subcommand it reads
// one HookEnvelope from stdin and writes one Decision to stdout (spec
// §4.6, §6). doctor/query/tail are operator affordances for inspecting
// the durable state store and audit log out of band.
package main

import (
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		return runHook(args)
	}

	switch args[0] {
	case "hook":
		return runHook(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "query":
		return runQuery(args[1:])
	case "tail":
		return runTail(args[1:])
	case "-h", "--help", "help":
		usage()
		return 0
	default:
		// Unrecognized first token: most host integrations invoke the
		// binary with no subcommand at all, so anything that isn't a
		// known subcommand is treated as hook input rather than an error.
		return runHook(args)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: mediator [hook|doctor|query|tail] [options]")
	fmt.Fprintln(os.Stderr, "With no subcommand, reads one hook event from stdin and writes one decision to stdout.")
}
