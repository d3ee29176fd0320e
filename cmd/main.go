// cmd/main.go
package main

import cmd "github.com/mwiater/psdsummary/cmd/psdsummary"

// main starts the psdsummary CLI by delegating to the cobra root command.
func main() {
	cmd.Execute()
}
