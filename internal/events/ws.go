package events

import (
	"sync"

	"github.com/gorilla/websocket"
)

// WSSession is one connected driver or passenger device.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(ev RideEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// WSRegistry holds live device sessions keyed by user id and pushes
// committed ride events to the driver and the affected passenger.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Publish fans the event out to the driver and, when the event concerns
// one booking, that booking's passenger. Users without a live session
// are skipped; the notifier picks them up over push.
func (r *WSRegistry) Publish(ev RideEvent) error {
	r.send(ev.DriverID, ev)
	if ev.PassengerID != "" {
		r.send(ev.PassengerID, ev)
	}
	return nil
}

func (r *WSRegistry) send(userID string, ev RideEvent) {
	if userID == "" {
		return
	}
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.Send(ev); err != nil {
		r.Remove(userID)
	}
}
