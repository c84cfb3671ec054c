package socketio_types

import (
	"sync"

	"github.com/zishang520/socket.io/v2/socket"
)

// SocketServer is a struct that contains the socket.io server and a map of socket connections.
// It is used to handle socket.io connections.
type SocketServer struct {
	Sio_server *socket.Server
	// Map to track username -> socket connections
	UserConnections map[string]*socket.Socket
	mutex           sync.RWMutex
}

// AddConnection records client as username's live socket, returning the one it replaced.
func (s *SocketServer) AddConnection(username string, client *socket.Socket) *socket.Socket {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	previous := s.UserConnections[username]
	s.UserConnections[username] = client
	return previous
}

// RemoveConnection forgets username's socket if it is still client. It
// reports whether client was the live connection.
func (s *SocketServer) RemoveConnection(username string, client *socket.Socket) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.UserConnections[username] != client {
		return false
	}
	delete(s.UserConnections, username)
	return true
}

func (s *SocketServer) GetConnection(username string) (*socket.Socket, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	socket, exists := s.UserConnections[username]
	return socket, exists
}
