// pcbengine is the command-line front end of the layout engine: it loads
// a board and netlist, runs classification, placement, routing, and DRC,
// and writes the routed board back out.
package main

func main() {
	Execute()
}
