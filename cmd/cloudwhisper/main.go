package main

import (
	"os"

	"github.com/amanullahtanweer/cloudwhisper-flow/cmd/cloudwhisper/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
