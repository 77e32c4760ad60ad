package main

import "github.com/getodk/briefcase-sub006/internal/cli"

func main() {
	cli.Execute()
}
