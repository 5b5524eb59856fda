// eapctl is the CLI client for the eapd daemon's status API.
package main

import "github.com/dantte-lp/goeap/cmd/eapctl/commands"

func main() {
	commands.Execute()
}
