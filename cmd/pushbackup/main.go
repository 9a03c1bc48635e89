package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/undo-ransomware/pushbackup/internal/cli"
	"github.com/undo-ransomware/pushbackup/internal/gateway"
)

func main() {
	err := cli.Execute()
	if err == nil {
		os.Exit(0)
	}

	var exitErr *gateway.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
