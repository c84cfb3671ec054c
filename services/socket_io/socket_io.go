package socket_io

import (
	"context"
	"time"

	"Forest/middleware"
	"Forest/services/socket_io/handlers"
	socketio_types "Forest/services/socket_io/types"
	"Forest/utils"

	"github.com/gin-gonic/gin"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

type MySocketServer socketio_types.SocketServer

func (sio *MySocketServer) server() *socketio_types.SocketServer {
	return (*socketio_types.SocketServer)(sio)
}

// Start mounts the socket.io endpoint on router. Every connection must carry
// a bearer token in its handshake auth.
func (sio *MySocketServer) Start(router *gin.Engine, deps *handlers.Deps, auth *middleware.Auth) {
	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	// NOTE: higher ping interval and timeout to 1) reduce network load and 2) support slower networks
	c.SetPingInterval(5 * time.Second)
	c.SetPingTimeout(3 * time.Second)
	c.SetMaxHttpBufferSize(1000000)
	c.SetConnectTimeout(10 * time.Second)
	c.SetTransports(types.NewSet("polling", "websocket"))
	c.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	// KEY: inicializar el map, sino panikea
	sio.UserConnections = make(map[string]*socket.Socket)

	logger := deps.Logger.Named("socket")

	sio.Sio_server = socket.NewServer(nil, nil)
	sio.Sio_server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)

		// Check if the client is authenticated
		username, ok := authenticate(client, auth, logger)
		if !ok {
			return
		}

		if previous := sio.server().AddConnection(username, client); previous != nil && previous != client {
			logger.Info("[CONNECT] replacing previous socket", zap.String("player", username))
		}

		publicKey, err := deps.Catalog.PublicKey(context.Background(), username)
		if err != nil {
			logger.Warn("[CONNECT] no registered public key, using fallback envelopes", zap.String("player", username), zap.Error(err))
		}
		session := handlers.NewSession(username, publicKey, client)
		logger.Info("[CONNECT] player connected", zap.String("player", username), zap.String("socket", string(client.Id())))

		// Lobby
		client.On("join_room", handlers.HandleJoinRoom(deps, session))
		client.On("join_group", handlers.HandleJoinGroup(deps, session))
		client.On("press_ready", handlers.HandleReady(deps, session, true))
		client.On("unpress_ready", handlers.HandleReady(deps, session, false))
		client.On("connection_ready", handlers.HandleConnectionReady(deps, session))
		client.On("leave_room", handlers.HandleLeaveRoom(deps, session))

		// Match
		client.On("get_game_state", handlers.HandleGetGameState(deps, session))
		client.On("reconnect_to_game", handlers.HandleReconnectToGame(deps, session))
		client.On("get_ability", handlers.HandleGetAbility(deps, session))
		client.On("make_move", handlers.HandleMakeMove(deps, session))
		client.On("skip_turn", handlers.HandleSkipTurn(deps, session))

		// NOTE: will remove sio connection from map
		client.On("disconnecting", handlers.HandleDisconnecting(deps, session, func() bool {
			return sio.server().RemoveConnection(username, client)
		}))
	})

	router.POST("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))
	router.GET("/socket.io/*f", gin.WrapH(sio.Sio_server.ServeHandler(c)))

	logger.Info("Socket server started")
}

// Close disconnects every socket.
func (sio *MySocketServer) Close() {
	if sio.Sio_server != nil {
		sio.Sio_server.Close(nil)
	}
}

func authenticate(client *socket.Socket, auth *middleware.Auth, logger *zap.Logger) (string, bool) {
	token, err := utils.TokenFromHandshake(client.Handshake().Auth)
	if err == nil {
		var username string
		if username, err = auth.ParseToken(token); err == nil {
			return username, true
		}
	}
	logger.Info("[CONNECT] rejected unauthenticated socket", zap.Error(err))
	client.Emit("error", gin.H{"error": "Authentication failed"})
	client.Disconnect(true)
	return "", false
}
