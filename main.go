package main

import (
	"github.com/abe-nagisa/zipstream/cmd"
)

func main() {
	cmd.Execute()
}
