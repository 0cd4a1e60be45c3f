package main

import "github.com/vsinha/bom/pkg/interfaces/cli/commands"

func main() {
	commands.Execute()
}
