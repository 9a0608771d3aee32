package main

import "github.com/OpenTraceLab/OpenTraceShift/cmd/srctl/cmd"

func main() {
	cmd.Execute()
}
