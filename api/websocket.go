package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// events streams every entry, exit and alert as JSON text messages
func (s *Server) events(c *gin.Context) {
	connection, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade error")
		return
	}
	pongWait := s.hub.pongWait
	connection.SetReadLimit(512)
	connection.SetReadDeadline(time.Now().Add(pongWait))
	connection.SetPongHandler(func(string) error {
		connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.hub.Register(connection)
	defer s.hub.Unregister(connection)

	stop := make(chan struct{})
	defer close(stop)
	go s.keepAlive(connection, stop)

	// Viewers only listen; reading detects disconnects
	for {
		if _, _, err := connection.ReadMessage(); err != nil {
			return
		}
	}
}

// keepAlive pings the client so an idle viewer keeps extending its read deadline.
// WriteControl is safe to call concurrently with hub broadcasts.
func (s *Server) keepAlive(connection *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.hub.pingPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := connection.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.logger.Debug().Err(err).Msg("Can't ping websocket client")
				return
			}
		}
	}
}
