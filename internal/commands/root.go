// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

// Package commands wires cmd/jerrydebug's cobra command tree: flag
// parsing, transport selection, and the single driver loop that owns a
// protocol.Session for the lifetime of the process.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jerryscript-project/iotjs-vscode-extension/internal/transport"
	"github.com/jerryscript-project/iotjs-vscode-extension/pkg/logger"
)

var (
	wsAddress         string
	serialConfig      string
	expectedMaxMsgLen int
)

// NewRootCommand builds the jerrydebug command tree: a single command
// that connects to one JerryScript engine (over WebSocket or a serial
// link) and runs an interactive session against it.
func NewRootCommand(log *logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "jerrydebug",
		Short:         "Connects to a JerryScript engine's remote debugger and drives a debug session",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runDebugSession(log),
		Args:          cobra.NoArgs,
	}

	root.CompletionOptions.HiddenDefaultCmd = true
	log.AddLevelFlag(root.PersistentFlags())

	root.Flags().StringVar(&wsAddress, "ws", "", "WebSocket URL of the engine's remote debugger endpoint (e.g. ws://localhost:8080/jerry-debugger)")
	root.Flags().StringVar(&serialConfig, "serial", "", "Serial link configuration as \"port,baud,databits,parity,stopbits\" (e.g. /dev/ttyUSB0,115200,8,N,1)")
	root.Flags().IntVar(&expectedMaxMsgLen, "max-message-size", 0, "If set, the session logs a warning when the engine's negotiated max_message_size disagrees with this value, instead of trusting the handshake silently")

	return root
}

func runDebugSession(log *logger.Logger) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if (wsAddress == "") == (serialConfig == "") {
			return fmt.Errorf("exactly one of --ws or --serial must be given")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sessionID := uuid.New().String()
		sessionLog := log.WithName("session").Logger.WithValues("sessionID", sessionID)

		t, err := dialTransport(ctx, sessionLog)
		if err != nil {
			sessionLog.Error(err, "failed to establish transport")
			return err
		}
		defer func() { _ = t.Close() }()

		return runSession(ctx, t, sessionLog, expectedMaxMsgLen)
	}
}

// dialTransport opens whichever transport the flags selected. Opening a
// real OS serial device (baud rate, parity, stop bits beyond what the
// kernel default gives a plain file handle) is outside this module's
// scope — spec.md names the transport drivers themselves as an external
// collaborator, only the byte-stream contract above them is specified —
// so the serial path here just opens the device path as a file and
// trusts the caller to have configured the link (e.g. via `stty`)
// beforehand.
func dialTransport(ctx context.Context, log logr.Logger) (transport.Transport, error) {
	if wsAddress != "" {
		return transport.DialWebSocket(ctx, wsAddress, log)
	}

	cfg, err := transport.ParseSerialConfig(serialConfig)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(cfg.Port, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening serial device %s: %w", cfg.Port, err)
	}
	return transport.NewSerial(f, log), nil
}
