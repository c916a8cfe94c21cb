// Command integrator is the entry point for the coordinator and worker
// processes.
package main

import "github.com/TR14WR/Testinfotecs/cmd"

func main() {
	cmd.Execute()
}
