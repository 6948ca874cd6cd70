// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/jerryscript-project/iotjs-vscode-extension/internal/breakpoints"
	"github.com/jerryscript-project/iotjs-vscode-extension/internal/protocol"
	"github.com/jerryscript-project/iotjs-vscode-extension/internal/transport"
)

// runSession is the single goroutine that owns a protocol.Session for
// the lifetime of a debug connection: it starts Session.Run in a
// background goroutine and is itself the only other caller of any
// Session command method, which is what lets Session stay lock-free.
// It reads commands from stdin until ctx is done or stdin closes.
func runSession(ctx context.Context, t transport.Transport, log logr.Logger, expectedMaxMsgLen int) error {
	d := protocol.Delegate{
		OnScriptParsed: func(e protocol.ScriptParsedEvent) {
			fmt.Printf("script parsed: id=%d name=%q lines=%d\n", e.ID, e.Name, e.LineCount)
		},
		OnBreakpointHit: func(e protocol.BreakpointHitEvent) {
			fmt.Printf("stopped at %s\n", describeHit(e.Breakpoint, e.Exact, e.StopLabel))
		},
		OnExceptionHit: func(e protocol.ExceptionHitEvent) {
			fmt.Printf("exception at %s: %s\n", describeHit(e.Breakpoint, e.Exact, ""), e.Message)
		},
		OnBacktrace: func(frames []protocol.BacktraceFrame) {
			for i, f := range frames {
				fmt.Printf("  #%d 0x%x+%d\n", i, f.ByteCodeCP, f.Offset)
			}
		},
		OnEvalResult: func(subtype byte, value string) {
			fmt.Printf("eval result (subtype %d): %s\n", subtype, value)
		},
		OnWaitForSource: func() {
			fmt.Println("engine is waiting for a client source upload")
		},
		OnResume: func() {
			fmt.Println("running")
		},
		OnError: func(code int, message string) {
			fmt.Printf("session error (code %d): %s\n", code, message)
		},
	}

	s := protocol.NewSession(t, d, log)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- s.Run(ctx) }()

	if expectedMaxMsgLen > 0 {
		go warnOnMaxMessageSizeMismatch(ctx, s, expectedMaxMsgLen, log)
	}

	scanner := bufio.NewScanner(os.Stdin)
	lineCh := make(chan string)
	go func() {
		for scanner.Scan() {
			lineCh <- scanner.Text()
		}
		close(lineCh)
	}()

	fmt.Println("jerrydebug ready; type 'help' for commands")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-runErrCh:
			return err
		case line, ok := <-lineCh:
			if !ok {
				return nil
			}
			if err := dispatchLine(ctx, s, line); err != nil {
				fmt.Println("error:", err)
			}
		}
	}
}

// warnOnMaxMessageSizeMismatch polls the session until the handshake
// negotiates max_message_size, then logs once if it disagrees with
// what --max-message-size told the operator to expect. There is no
// handshake-completion signal on Session worth adding just for this,
// so a short poll is the cheapest way to observe it from outside.
func warnOnMaxMessageSizeMismatch(ctx context.Context, s *protocol.Session, expected int, log logr.Logger) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if got := s.MaxMessageSize(); got != 0 {
				if got != expected {
					log.Info("engine's negotiated max_message_size differs from --max-message-size",
						"expected", expected, "negotiated", got)
				}
				return
			}
		}
	}
}

func dispatchLine(ctx context.Context, s *protocol.Session, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		printHelp()
		return nil
	case "c", "continue":
		return s.Resume(ctx)
	case "n", "next":
		return s.StepOver(ctx)
	case "s", "step":
		return s.StepInto(ctx)
	case "o", "out":
		return s.StepOut(ctx)
	case "p", "pause":
		return s.Pause(ctx)
	case "bt", "backtrace":
		h, err := s.RequestBacktrace(ctx)
		if err != nil {
			return err
		}
		_, err = h.Wait(ctx)
		return err
	case "eval":
		if len(args) == 0 {
			return fmt.Errorf("usage: eval <expression>")
		}
		h, err := s.Evaluate(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		_, _, err = h.Wait(ctx)
		return err
	case "restart":
		h, err := s.Restart(ctx)
		if err != nil {
			return err
		}
		_, _, err = h.Wait(ctx)
		return err
	case "break", "unbreak":
		return dispatchBreak(ctx, s, cmd == "break", args)
	case "except":
		if len(args) != 1 {
			return fmt.Errorf("usage: except <on|off>")
		}
		return s.ExceptionConfig(ctx, args[0] == "on")
	case "source":
		if len(args) != 2 {
			return fmt.Errorf("usage: source <name> <path>")
		}
		body, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		return s.SendClientSource(ctx, args[0], string(body))
	case "quit", "exit":
		os.Exit(0)
		return nil
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

func dispatchBreak(ctx context.Context, s *protocol.Session, enable bool, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: break <scriptID> <line>")
	}
	scriptID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid script id %q: %w", args[0], err)
	}
	line, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid line %q: %w", args[1], err)
	}

	bp, err := s.Model().FindBreakpoint(uint32(scriptID), uint32(line))
	if err != nil {
		return err
	}
	return s.UpdateBreakpoint(ctx, bp, enable)
}

func describeHit(bp *breakpoints.Breakpoint, exact bool, stopLabel string) string {
	precision := "exact"
	if !exact {
		precision = "inexact"
	}
	location := fmt.Sprintf("script %d line %d", bp.ScriptID, bp.Line)
	if stopLabel != "" {
		return fmt.Sprintf("%s, %s (%s)", location, precision, stopLabel)
	}
	return fmt.Sprintf("%s, %s", location, precision)
}

func printHelp() {
	fmt.Println(`commands:
  c, continue             resume until the next active breakpoint or exception
  n, next                 step over
  s, step                 step into
  o, out                  step out
  p, pause                request a halt at the next opportunity
  bt, backtrace           print the current call stack
  eval <expr>             evaluate expr in the current stopped scope
  restart                 abort the current evaluation
  break <scriptID> <line> activate the breakpoint at scriptID:line
  unbreak <scriptID> <line>
                          deactivate the breakpoint at scriptID:line
  except <on|off>         toggle stop-on-uncaught-exception
  source <name> <path>    upload a source file while the engine awaits one
  quit, exit              disconnect and exit`)
}
