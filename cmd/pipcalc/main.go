package main

import "github.com/rustyeddy/pipcalc/internal/cli"

func main() {
	cli.Execute()
}
