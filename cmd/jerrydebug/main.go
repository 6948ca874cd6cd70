// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

// Command jerrydebug is a minimal command-line front-end for the
// JerryScript remote debugger protocol client in internal/protocol. It
// is not a debug-adapter façade: it drives a single session from stdin
// commands and prints events to stdout, enough to exercise every
// protocol.Session command from a terminal except
// SendClientSourceControl, which has no stdin command.
package main

import (
	"os"

	"github.com/jerryscript-project/iotjs-vscode-extension/internal/commands"
	"github.com/jerryscript-project/iotjs-vscode-extension/pkg/logger"
	"github.com/jerryscript-project/iotjs-vscode-extension/pkg/resiliency"
)

const (
	errCommandError = 1
	errPanic        = 2
)

func main() {
	log := logger.New("jerrydebug").WithName("jerrydebug")
	defer func() {
		if panicErr := resiliency.MakePanicError(recover(), log.Logger); panicErr != nil {
			os.Stderr.WriteString(panicErr.Error() + "\n")
			log.Flush()
			os.Exit(errPanic)
		}
	}()

	root := commands.NewRootCommand(log)
	if err := root.Execute(); err != nil {
		log.Flush()
		os.Exit(errCommandError)
	}
	log.Flush()
}
