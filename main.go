package main

import "github.com/chrisdamba/deliverysim/cmd"

func main() {
	cmd.Execute()
}
