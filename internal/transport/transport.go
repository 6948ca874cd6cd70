// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

// Package transport adapts a byte stream (a WebSocket connection or a
// length-prefixed serial link) into the logical-frame contract the
// protocol handler expects: one complete message delivered per inbound
// frame, regardless of how many underlying reads or packets it took to
// assemble it. Opening the underlying OS resource (a real TCP socket, a
// real serial port) is the caller's job — this package only owns the
// framing above it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrClosed is returned by Send once the transport has been closed.
var ErrClosed = errors.New("transport: closed")

// Transport delivers complete logical frames upward and accepts opaque
// byte buffers downward. Implementations must be safe for one concurrent
// Send and the Frames()/Closed() channels being read from a single
// consumer goroutine; spec.md 5 assumes exactly one reader of Frames().
type Transport interface {
	// Send submits a frame for transmission. It returns an error
	// (wrapping ErrClosed once closed) if the underlying write fails;
	// per spec.md 4.2 this must be treated by the caller as a hard
	// submit failure, not retried internally.
	Send(ctx context.Context, frame []byte) error

	// Frames delivers one logical frame per receive. The channel is
	// closed when the transport is closed or the underlying connection
	// fails.
	Frames() <-chan []byte

	// Closed is closed exactly once, when the transport stops
	// delivering frames: on explicit Close, on a read failure on the
	// underlying connection, or (WebSocket only) on a failed keepalive
	// ping or the caller's ctx ending. A failed Send does not close it.
	Closed() <-chan struct{}

	// Close releases the underlying connection. Idempotent.
	Close() error
}

// SerialConfig is a parsed 5-field serial port configuration string,
// per spec.md 4.2: "port,baud,databits,parity,stopbits".
type SerialConfig struct {
	Port     string
	Baud     int
	DataBits int
	Parity   byte // 'N', 'O', or 'E'
	StopBits int
}

// ParseSerialConfig parses and validates a serial configuration string.
// Any deviation from the expected shape fails.
func ParseSerialConfig(s string) (SerialConfig, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 5 {
		return SerialConfig{}, fmt.Errorf("transport: serial config must have 5 comma-separated fields, got %d", len(fields))
	}

	port := fields[0]
	if port == "" {
		return SerialConfig{}, errors.New("transport: serial config: port must not be empty")
	}

	baud, err := strconv.Atoi(fields[1])
	if err != nil || baud <= 0 {
		return SerialConfig{}, fmt.Errorf("transport: serial config: invalid baud rate %q", fields[1])
	}

	dataBits, err := strconv.Atoi(fields[2])
	if err != nil {
		return SerialConfig{}, fmt.Errorf("transport: serial config: invalid data bits %q", fields[2])
	}
	switch dataBits {
	case 5, 6, 7, 8:
	default:
		return SerialConfig{}, fmt.Errorf("transport: serial config: data bits must be one of 5,6,7,8, got %d", dataBits)
	}

	if len(fields[3]) != 1 {
		return SerialConfig{}, fmt.Errorf("transport: serial config: invalid parity %q", fields[3])
	}
	parity := fields[3][0]
	switch parity {
	case 'N', 'O', 'E':
	default:
		return SerialConfig{}, fmt.Errorf("transport: serial config: parity must be one of N,O,E, got %q", fields[3])
	}

	stopBits, err := strconv.Atoi(fields[4])
	if err != nil {
		return SerialConfig{}, fmt.Errorf("transport: serial config: invalid stop bits %q", fields[4])
	}
	switch stopBits {
	case 1, 2:
	default:
		return SerialConfig{}, fmt.Errorf("transport: serial config: stop bits must be 1 or 2, got %d", stopBits)
	}

	return SerialConfig{
		Port:     port,
		Baud:     baud,
		DataBits: dataBits,
		Parity:   parity,
		StopBits: stopBits,
	}, nil
}
