package handlers

import (
	"go.uber.org/zap"
)

// HandleDisconnecting releases the session's room membership. live reports
// whether this socket is still the player's current connection; a socket
// replaced by a newer one only drops its own subscription.
func HandleDisconnecting(d *Deps, s *Session, live func() bool) func(args ...any) {
	return func(args ...any) {
		d.Logger.Info("[DISCONNECT] socket closing", zap.String("player", s.Username))

		current := live()
		code, ok := d.Registry.RoomOf(s.Username)
		if !ok {
			return
		}
		d.Hub.Detach(code, s.Username, s.sink)
		if !current {
			d.Logger.Debug("[DISCONNECT] stale socket, membership kept", zap.String("room", code), zap.String("player", s.Username))
			return
		}
		if err := d.Registry.Disconnect(code, s.Username); err != nil {
			d.Logger.Debug("[DISCONNECT] nothing to release", zap.String("room", code), zap.String("player", s.Username), zap.Error(err))
		}
	}
}
