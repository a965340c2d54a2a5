// Package objstore implements the per-client table of protocol
// objects.
package objstore

import (
	"slices"

	"deedles.dev/wlsurf/internal/debug"
	"deedles.dev/wlsurf/wire"
	"golang.org/x/exp/maps"
)

// ServerIDStart is the first ID in the range reserved for objects
// created by the server.
const ServerIDStart = 0xFF000000

type Store struct {
	objects map[uint32]wire.Object
	nextID  uint32
}

func New(start uint32) *Store {
	return &Store{
		objects: make(map[uint32]wire.Object),
		nextID:  start,
	}
}

// Add stores obj under its ID. Objects without an ID are given the
// next one from the store's own range.
func (s *Store) Add(obj wire.Object) {
	id := obj.ID()
	if id == 0 {
		id = s.nextID
		obj.SetID(id)
		s.nextID++
	}

	s.objects[id] = obj
}

func (s *Store) Get(id uint32) wire.Object {
	return s.objects[id]
}

func (s *Store) Len() int {
	return len(s.objects)
}

// Delete removes the object with the given ID and calls its Delete
// method.
func (s *Store) Delete(id uint32) {
	obj := s.objects[id]
	delete(s.objects, id)
	if obj != nil {
		obj.Delete()
	}
}

// Clear deletes every object in ID order.
func (s *Store) Clear() {
	objects := maps.Clone(s.objects)
	ids := make([]uint32, 0, len(objects))
	for id := range objects {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		s.Delete(id)
	}
}

// Dispatch hands msg to the object it is addressed to.
func (s *Store) Dispatch(msg *wire.MessageBuffer) error {
	obj := s.objects[msg.Sender()]
	if obj == nil {
		return wire.UnknownSenderIDError{Msg: msg}
	}

	err := obj.Dispatch(msg)
	if debug.Tracing() {
		debug.Trace("%v", msg.Debug(obj))
	}
	return err
}
