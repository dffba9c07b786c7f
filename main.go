package main

import (
	"github.com/luma/xdrprobe/cmd"
)

func main() {
	cmd.Execute()
}
