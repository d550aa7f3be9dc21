package main

import (
	"github.com/shaharia-lab/tablebus/cmd"
)

func main() {
	cmd.Execute()
}
