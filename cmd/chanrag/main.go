package main

import "chanrag/internal/cli"

func main() {
	cli.Execute()
}
