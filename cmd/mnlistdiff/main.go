package main

import (
	"github.com/1NF1N18Y/dash/cmd/mnlistdiff/commands"
)

func main() {
	rootCmd := commands.RootCmd
	rootCmd.AddCommand(commands.DecodeCmd, commands.VersionCmd)
	commands.Execute()
}
