// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davidwartell/go-onecontext/onecontext"
	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/jerryscript-project/iotjs-vscode-extension/pkg/resiliency"
)

const (
	pingInterval = 15 * time.Second
	pongWait     = 30 * time.Second
	writeWait    = 5 * time.Second
)

// wsTransport adapts a *websocket.Conn to Transport. The debugger
// protocol puts exactly one logical frame in each binary WebSocket
// message, so no additional reassembly is needed above the gorilla
// library's own message framing; a text message is treated as a
// protocol violation and dropped rather than delivered.
//
// Only readLoop ever sends on frames or closes it; pingLoop and Close
// only ever signal shutdown through closed and wait on done.
type wsTransport struct {
	conn *websocket.Conn
	log  logr.Logger

	frames chan []byte
	closed chan struct{}
	done   chan struct{}

	// connCtx/connCancel bound pingLoop's lifetime to this transport
	// rather than to the caller's context alone, so closing the
	// connection locally tears the pinger down even if the caller's
	// ctx is a long-lived background context (e.g. cmd/jerrydebug's
	// process lifetime context).
	connCtx    context.Context
	connCancel context.CancelFunc

	writeMu sync.Mutex
	once    sync.Once
}

// NewWebSocket wraps an already-established WebSocket connection.
// Opening the socket (dialing, upgrading, TLS) is the caller's
// responsibility; see DialWebSocket for a client-side helper. ctx is
// the caller's lifetime context; pingLoop exits when either ctx is
// done or this transport is closed, whichever comes first.
func NewWebSocket(ctx context.Context, conn *websocket.Conn, log logr.Logger) Transport {
	connCtx, connCancel := context.WithCancel(context.Background())
	t := &wsTransport{
		conn:       conn,
		log:        log,
		frames:     make(chan []byte, 16),
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
		connCtx:    connCtx,
		connCancel: connCancel,
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go t.readLoop()
	go t.pingLoop(ctx)
	return t
}

func (t *wsTransport) readLoop() {
	defer func() {
		t.once.Do(func() { close(t.closed) })
		t.connCancel()
		_ = t.conn.Close()
		close(t.frames)
		close(t.done)
	}()

	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			t.log.V(1).Info("websocket read failed, closing transport", "error", err)
			return
		}
		if msgType != websocket.BinaryMessage {
			t.log.Info("dropping non-binary websocket message", "type", msgType)
			continue
		}
		t.frames <- data
	}
}

// pingLoop keeps the connection alive until either the caller's ctx or
// this transport's own connCtx ends — two independent cancellation
// sources merged into one, since the caller's lifetime and the
// connection's lifetime can end for unrelated reasons.
func (t *wsTransport) pingLoop(ctx context.Context) {
	mergedCtx, cancel := onecontext.Merge(ctx, t.connCtx)
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.writeMu.Lock()
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := t.conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				t.once.Do(func() { close(t.closed) })
				return
			}
		case <-mergedCtx.Done():
			t.once.Do(func() { close(t.closed) })
			return
		case <-t.closed:
			return
		}
	}
}

func (t *wsTransport) Send(ctx context.Context, frame []byte) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	deadline := time.Now().Add(writeWait)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("transport: websocket write failed: %w", err)
	}
	return nil
}

func (t *wsTransport) Frames() <-chan []byte {
	return t.frames
}

func (t *wsTransport) Closed() <-chan struct{} {
	return t.closed
}

// Close signals shutdown and waits for readLoop to finish closing the
// underlying connection and draining Frames() before returning.
func (t *wsTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	t.connCancel()
	_ = t.conn.Close()
	<-t.done
	return nil
}

// DialWebSocket dials url and wraps the resulting connection, retrying
// the dial with exponential backoff until it succeeds, ctx is done, or
// the backoff's default maximum elapsed time runs out.
func DialWebSocket(ctx context.Context, url string, log logr.Logger) (Transport, error) {
	conn, err := resiliency.RetryGet(ctx, func() (*websocket.Conn, error) {
		c, _, dialErr := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if dialErr != nil {
			log.V(1).Info("websocket dial failed, retrying", "error", dialErr)
			return nil, fmt.Errorf("transport: dial %s failed: %w", url, dialErr)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	return NewWebSocket(ctx, conn, log), nil
}
