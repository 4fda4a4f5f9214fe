package main

import "github.com/angelmondragon/quotedesk-backend/cmd/quotectl/commands"

func main() {
	commands.Execute()
}
