package main

import "github.com/tansive/flowbridge/internal/cli"

func main() {
	cli.Execute()
}
