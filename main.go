package main

import (
	"ticket-marketplace/cmd"

	_ "go.uber.org/automaxprocs"
)

func main() {
	cmd.Start()
}
