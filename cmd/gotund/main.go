// gotund daemon -- user-space TCP/IP subset over a TUN device.
package main

import "github.com/dantte-lp/gotun/cmd/gotund/commands"

func main() {
	commands.Execute()
}
