package main

import "github.com/rtr-labs/repaircam/internal/bootstrap"

func main() {
	bootstrap.Run()
}
