// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"
)

// maxSerialFrame is the largest payload a single length-prefixed frame
// can carry: the length byte is the payload length N itself, and a byte
// can hold 0-255, so N maxes out at 255 and the total on-wire frame
// (length byte plus payload) maxes out at 256 bytes.
const maxSerialFrame = 255

// serialTransport frames an arbitrary byte stream (a real serial port,
// or any io.ReadWriteCloser standing in for one) using the debugger
// protocol's length-prefixed encoding: each frame is a single length
// byte N followed by N bytes of payload, so a frame never exceeds 256
// bytes on the wire. Opening the actual port (baud rate, parity, the OS
// device) is out of scope here; NewSerial only needs something that
// already behaves like an open byte stream.
//
// Only readLoop ever sends on frames or closes it, so there is no
// producer/closer race to guard against once that goroutine exits.
type serialTransport struct {
	rw  io.ReadWriteCloser
	log logr.Logger

	frames chan []byte
	closed chan struct{}
	done   chan struct{} // closed once readLoop has fully exited

	writeMu sync.Mutex
	once    sync.Once
}

// NewSerial wraps an already-open byte stream with length-prefixed
// frame boundaries.
func NewSerial(rw io.ReadWriteCloser, log logr.Logger) Transport {
	t := &serialTransport{
		rw:     rw,
		log:    log,
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *serialTransport) readLoop() {
	defer func() {
		t.once.Do(func() { close(t.closed) })
		close(t.frames)
		close(t.done)
	}()

	lenBuf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(t.rw, lenBuf); err != nil {
			t.log.V(1).Info("serial read failed, closing transport", "error", err)
			return
		}
		n := int(lenBuf[0])
		if n == 0 {
			t.log.Info("dropping zero-length serial frame")
			continue
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(t.rw, payload); err != nil {
			t.log.V(1).Info("serial read failed, closing transport", "error", err)
			return
		}
		t.frames <- payload
	}
}

// Send writes a single length-prefixed frame. Splitting a logical
// message larger than maxSerialFrame bytes into multiple frames is the
// protocol layer's job (it already does so to honor max_message_size);
// Send rejects anything that wouldn't fit.
func (t *serialTransport) Send(ctx context.Context, frame []byte) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	if len(frame) > maxSerialFrame {
		return fmt.Errorf("transport: serial frame of %d bytes exceeds maximum of %d", len(frame), maxSerialFrame)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.rw.Write(append([]byte{byte(len(frame))}, frame...))
	if err != nil {
		return fmt.Errorf("transport: serial write failed: %w", err)
	}
	return nil
}

func (t *serialTransport) Frames() <-chan []byte {
	return t.frames
}

func (t *serialTransport) Closed() <-chan struct{} {
	return t.closed
}

// Close stops accepting writes and waits for readLoop to observe the
// underlying stream closing before returning, so callers can rely on
// Frames() already being drained and closed once Close returns.
func (t *serialTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	err := t.rw.Close()
	<-t.done
	return err
}
