package main

import "github.com/kozaktomas/orchid/cmd"

func main() {
	cmd.Execute()
}
