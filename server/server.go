// Package server implements the core Wayland protocol objects on top
// of package surface and package shm.
//
// A Server accepts connections on its own goroutine and reads from
// each client on another, but every request is queued and only
// dispatched from Flush. All protocol state is therefore owned by the
// goroutine that calls Flush, which is also the one that must drive
// the Compositor's frame hooks.
package server

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"deedles.dev/wlsurf/internal/ev"
	"deedles.dev/wlsurf/internal/set"
	"deedles.dev/wlsurf/wire"
	"github.com/charmbracelet/log"
)

type Server struct {
	done   chan struct{}
	close  sync.Once
	lis    *net.UnixListener
	queue  *ev.Queue
	logger *log.Logger

	compositor *Compositor
	clients    set.Set[*Client]
	nextClient int

	// ClientAdded and ClientRemoved, if set, are called from Flush as
	// clients come and go.
	ClientAdded   func(*Client)
	ClientRemoved func(*Client)
}

// Listen creates a socket with the given name and serves compositor
// on it. An empty name picks the first free wayland-N socket.
func Listen(name string, compositor *Compositor) (*Server, error) {
	lis, err := wire.Listen(name)
	if err != nil {
		return nil, err
	}
	return NewServer(lis, compositor), nil
}

// NewServer serves compositor to clients that connect to lis.
func NewServer(lis *net.UnixListener, compositor *Compositor) *Server {
	server := Server{
		done:       make(chan struct{}),
		lis:        lis,
		queue:      ev.NewQueue(),
		logger:     compositor.logger,
		compositor: compositor,
		clients:    set.New[*Client](),
	}
	go server.listen()

	return &server
}

func (server *Server) listen() {
	for {
		c, err := server.lis.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			select {
			case <-server.done:
				return
			case server.queue.Add() <- func() error { return fmt.Errorf("accept: %w", err) }:
				continue
			}
		}

		select {
		case <-server.done:
			c.Close()
			return
		case server.queue.Add() <- func() error { server.addClient(wire.NewConn(c)); return nil }:
		}
	}
}

// Addr returns the address the server is listening on.
func (server *Server) Addr() net.Addr {
	return server.lis.Addr()
}

// Compositor returns the compositor being served.
func (server *Server) Compositor() *Compositor {
	return server.compositor
}

// Serve adds an already connected client. It is mostly useful for
// connections made with socketpair.
func (server *Server) Serve(conn *net.UnixConn) {
	select {
	case <-server.done:
		conn.Close()
	case server.queue.Add() <- func() error { server.addClient(wire.NewConn(conn)); return nil }:
	}
}

func (server *Server) addClient(conn *wire.Conn) *Client {
	server.nextClient++
	client := newClient(server, conn, server.nextClient)
	server.clients.Add(client)
	client.logger.Info("client connected")

	if server.ClientAdded != nil {
		server.ClientAdded(client)
	}
	return client
}

func (server *Server) removeClient(client *Client) {
	if !server.clients.Has(client) {
		return
	}
	server.clients.Delete(client)
	client.destroy()
	client.logger.Info("client disconnected")

	if server.ClientRemoved != nil {
		server.ClientRemoved(client)
	}
}

// Clients returns the currently connected clients.
func (server *Server) Clients() []*Client {
	clients := make([]*Client, 0, len(server.clients))
	for client := range server.clients {
		clients = append(clients, client)
	}
	return clients
}

// Flush accepts pending connections, dispatches every request received
// since the last call, sends the resulting events, and drops clients
// that disconnected or caused a protocol error. It returns every error
// encountered along the way.
func (server *Server) Flush() error {
	errs := []error{ev.Poll(server.queue)}

	for _, client := range server.Clients() {
		errs = append(errs, client.flush())
		if client.closing {
			server.removeClient(client)
		}
	}

	return errors.Join(errs...)
}

// Close stops accepting connections and disconnects every client.
func (server *Server) Close() error {
	var err error
	server.close.Do(func() {
		close(server.done)
		err = server.lis.Close()
		server.queue.Stop()

		for _, client := range server.Clients() {
			server.removeClient(client)
		}
	})
	return err
}
