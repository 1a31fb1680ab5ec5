package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/chrome-keepalive/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Target is the running browser session being debugged
type Target interface {
	Status() models.Session
	ControlURL() string
}

// Server relays DevTools protocol traffic between a client and the browser
type Server struct {
	target Target
	logger *zap.Logger
	dialer *websocket.Dialer
}

func NewServer(target Target, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		target: target,
		logger: logger,
		dialer: websocket.DefaultDialer,
	}
}

func (s *Server) HandleDebugConnection(w http.ResponseWriter, r *http.Request) {
	sess := s.target.Status()
	if sess.Status != models.StatusRunning {
		http.Error(w, "Session is not running", http.StatusBadRequest)
		return
	}

	chromeURL := s.target.ControlURL()
	if chromeURL == "" {
		http.Error(w, "Browser has no debugger url", http.StatusServiceUnavailable)
		return
	}

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	defer clientConn.Close()

	s.logger.Info("Debug client connected", zap.String("session", sess.ID))

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	chromeConn, _, err := s.dialer.DialContext(ctx, chromeURL, nil)
	if err != nil {
		s.logger.Warn("Failed to connect to browser", zap.Error(err))
		clientConn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("Error connecting: %v", err)))
		return
	}
	defer chromeConn.Close()

	errChan := make(chan error, 2)

	go func() {
		errChan <- s.proxyMessages(clientConn, chromeConn, "client→chrome")
	}()

	go func() {
		errChan <- s.proxyMessages(chromeConn, clientConn, "chrome→client")
	}()

	// either side closing ends the relay
	err = <-errChan
	if err != nil && !errors.Is(err, io.EOF) && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		s.logger.Warn("Proxy error", zap.String("session", sess.ID), zap.Error(err))
	}

	s.logger.Info("Debug client disconnected", zap.String("session", sess.ID))
}

func (s *Server) proxyMessages(src, dst *websocket.Conn, direction string) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug("WebSocket error", zap.String("direction", direction), zap.Error(err))
			}
			return err
		}

		if err := dst.WriteMessage(messageType, message); err != nil {
			s.logger.Debug("Failed to write message", zap.String("direction", direction), zap.Error(err))
			return err
		}
	}
}
