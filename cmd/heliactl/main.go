package main

import "heliactyl/internal/cli"

func main() {
	cli.Execute()
}
