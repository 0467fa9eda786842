// Command sdramtester brings a simulated DDR3 controller up through its
// register bus and stress-tests it with random traffic.
package main

import "github.com/sarchlab/sdramtester/cmd/sdramtester/cmd"

func main() {
	cmd.Execute()
}
