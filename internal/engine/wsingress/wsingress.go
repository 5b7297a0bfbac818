// Package wsingress is a reference engine.Ingress implementation: it
// accepts one or more WebSocket connections and treats every binary
// frame received as one raw wire-format transaction.
package wsingress

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server accepts WebSocket connections on Addr and forwards every binary
// frame from every connected client to the onFrame callback passed to
// Listen, stamping each with its own arrival time.
type Server struct {
	Addr string

	srv *http.Server
}

// NewServer builds a Server listening on addr (e.g. ":8090").
func NewServer(addr string) *Server {
	return &Server{Addr: addr}
}

// Listen implements engine.Ingress. It blocks until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, onFrame func(raw []byte, arrivedAt int64)) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "err", err)
			return
		}
		go s.serveConn(ctx, conn, onFrame)
	})

	s.srv = &http.Server{Addr: s.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, onFrame func([]byte, int64)) {
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		onFrame(data, time.Now().UnixMicro())
	}
}
