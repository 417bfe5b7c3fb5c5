package main

import (
	"os"

	corpuscmder "github.com/inkwellco/corpus/cmd/corpus"
)

func main() {
	cmd := corpuscmder.NewCorpusCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
