package main

import (
	"github.com/yinx843/anvio/cmd"
)

func main() {
	cmd.Execute() // initialize cobra commands
}
