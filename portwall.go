package main

import (
	"github.com/priyxstudio/portwall/cmd"
)

func main() {
	cmd.Execute()
}
