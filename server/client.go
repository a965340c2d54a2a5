package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"deedles.dev/wlsurf/internal/debug"
	"deedles.dev/wlsurf/internal/ev"
	"deedles.dev/wlsurf/internal/objstore"
	"deedles.dev/wlsurf/wire"
	"github.com/charmbracelet/log"
)

// Client is a single connection to the server.
type Client struct {
	server *Server
	id     int
	done   chan struct{}
	close  sync.Once
	conn   *wire.Conn
	store  *objstore.Store
	queue  *ev.Queue
	logger *log.Logger

	display *display
	out     []*wire.MessageBuilder

	// closing is set once the client has to be dropped, either
	// because it hung up or because it caused a protocol error.
	closing bool
}

func newClient(server *Server, conn *wire.Conn, id int) *Client {
	client := Client{
		server: server,
		id:     id,
		done:   make(chan struct{}),
		conn:   conn,
		store:  objstore.New(objstore.ServerIDStart),
		queue:  ev.NewQueue(),
		logger: server.logger.With("client", id),
	}

	client.display = &display{resource: resource{client: &client, id: 1}}
	client.store.Add(client.display)

	go client.listen()

	return &client
}

func (client *Client) String() string {
	return fmt.Sprintf("client#%v", client.id)
}

func (client *Client) listen() {
	for {
		msg, err := wire.ReadMessage(client.conn)
		if err != nil {
			hangup := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
			hup := func() error {
				client.closing = true
				if hangup {
					return nil
				}
				return fmt.Errorf("%v: %w", client, err)
			}

			select {
			case <-client.done:
			case client.queue.Add() <- hup:
			}
			return
		}

		select {
		case <-client.done:
			return
		case client.queue.Add() <- func() error { return client.dispatch(msg) }:
			// TODO: Limit number of queued incoming messages?
		}
	}
}

func (client *Client) dispatch(msg *wire.MessageBuffer) error {
	if client.closing {
		return nil
	}

	err := client.store.Dispatch(msg)
	if err == nil {
		return nil
	}

	var perr *ProtocolError
	if !errors.As(err, &perr) {
		perr = client.classify(msg, err)
	}
	client.PostError(perr)
	return fmt.Errorf("%v: %w", client, err)
}

// classify turns an error from a request handler into the protocol
// error that is reported to the client.
func (client *Client) classify(msg *wire.MessageBuffer, err error) *ProtocolError {
	var unknownSender wire.UnknownSenderIDError
	if errors.As(err, &unknownSender) {
		return protocolErrorf(client.display, DisplayErrorInvalidObject, "invalid object %v", msg.Sender())
	}

	var unknownOp wire.UnknownOpError
	if errors.As(err, &unknownOp) {
		return protocolErrorf(client.display, DisplayErrorInvalidMethod, "%v", err)
	}

	if msg.Err() != nil {
		return protocolErrorf(client.display, DisplayErrorInvalidMethod, "malformed request: %v", msg.Err())
	}

	return protocolErrorf(client.display, DisplayErrorImplementation, "%v", err)
}

// PostError sends err to the client as a wl_display.error and marks
// the client to be disconnected once pending events have been sent.
func (client *Client) PostError(err *ProtocolError) {
	if client.closing {
		return
	}

	client.logger.Warn("protocol error", "object", err.Object, "code", err.Code, "err", err.Message)
	client.display.sendError(err)
	client.closing = true
}

// Add stores obj in the client's object table.
func (client *Client) Add(obj wire.Object) {
	client.store.Add(obj)
}

// AddNew stores obj under the ID the client chose for it. The ID must
// be in the client's range and not already in use.
func (client *Client) AddNew(obj wire.Object) error {
	err := client.checkNewID(obj.ID())
	if err != nil {
		return err
	}

	client.store.Add(obj)
	return nil
}

func (client *Client) checkNewID(id uint32) error {
	if (id == 0) || (id >= objstore.ServerIDStart) || (client.store.Get(id) != nil) {
		return protocolErrorf(client.display, DisplayErrorInvalidObject, "invalid new id %v", id)
	}
	return nil
}

func (client *Client) Get(id uint32) wire.Object {
	return client.store.Get(id)
}

// Delete removes the object with the given ID and tells the client
// that the ID is free again.
func (client *Client) Delete(id uint32) {
	client.store.Delete(id)
	if id < objstore.ServerIDStart {
		client.display.deleteID(id)
	}
}

// Enqueue queues msg to be sent with the next flush.
func (client *Client) Enqueue(msg *wire.MessageBuilder) {
	client.out = append(client.out, msg)
}

// flush dispatches the requests received since the last flush and
// then sends every queued event.
func (client *Client) flush() error {
	err := ev.Poll(client.queue)

	var errs []error
	for _, msg := range client.out {
		debug.Trace(" -> %v", msg)
		errs = append(errs, msg.Build(client.conn))
	}
	client.out = nil

	return errors.Join(err, errors.Join(errs...))
}

// destroy tears down every object the client owns and closes the
// connection.
func (client *Client) destroy() {
	client.close.Do(func() {
		close(client.done)
		client.queue.Stop()
		client.store.Clear()
		client.conn.Close()
	})
}
