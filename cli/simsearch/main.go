package main

import (
	"os"

	simsearchcmder "github.com/papercomputeco/simsearch/cmd/simsearch"
)

func main() {
	cmd := simsearchcmder.NewSimsearchCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
