package main

import "github.com/fakeyudi/docpilot/cmd"

func main() {
	cmd.Execute()
}
