package main

import "github.com/satriahrh/schedula/internal/commands"

func main() {
	commands.Execute()
}
