package main

import "github.com/marlinsh/marlin/cmd"

func main() {
	cmd.Execute()
}
