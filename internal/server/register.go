package server

import "github.com/relaycore/ircd/internal/dispatch"

// RegisterCommands wires every built-in command into ctx's dispatch
// registry (spec.md §4.G/§6). Each register* call lives in the file
// grouping it with its command family so handler and registration stay
// next to each other.
func RegisterCommands(ctx *Context) {
	registerHandshakeCommands(ctx)
	registerChannelCommands(ctx)
	registerMessagingCommands(ctx)
	registerQueryCommands(ctx)
	registerOperCommands(ctx)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func cmd(ctx *Context, c *dispatch.Command[*Session]) {
	must(ctx.Commands.Register(c))
}
