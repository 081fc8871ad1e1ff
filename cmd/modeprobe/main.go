// cmd/modeprobe/main.go
package main

import (
	cmd "modeprobe/internal/commands"
)

// main starts the modeprobe CLI application by delegating to the
// cobra root command. It does not take any arguments and does not
// return a value.
func main() {
	cmd.Execute()
}
