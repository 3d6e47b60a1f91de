package main

import "energy-monitor/cmd/energy-monitor/commands"

func main() {
	commands.Execute()
}
