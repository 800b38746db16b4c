package dwp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Server accepts WebSocket sessions and one-shot HTTP RPC requests and
// hands their frames to a Handler.
type Server struct {
	handler      *Handler
	auth         Authenticator
	defaultCodec Codec
	conns        *ConnectionManager
	logger       *slog.Logger
	basePath     string
	closing      atomic.Bool
}

// NewServer creates a new protocol server.
func NewServer(handler *Handler, opts ...Option) *Server {
	s := &Server{
		handler:      handler,
		defaultCodec: &JSONCodec{},
		conns:        NewConnectionManager(),
		logger:       slog.Default(),
		basePath:     "/dwp",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = &NoopAuthenticator{}
	}
	return s
}

// Connections returns the connection manager.
func (s *Server) Connections() *ConnectionManager { return s.conns }

// Shutdown stops accepting WebSocket sessions and closes the live ones.
// HTTP RPC keeps working; it is bounded by the HTTP server's own shutdown.
func (s *Server) Shutdown(_ context.Context) error {
	s.closing.Store(true)
	if n := s.conns.CloseAll(); n > 0 {
		s.logger.Info("DWP sessions closed", slog.Int("count", n))
	}
	return nil
}

// RegisterRoutes mounts the WebSocket endpoint at the base path and the
// RPC endpoint at {base}/rpc.
func (s *Server) RegisterRoutes(router gin.IRoutes) {
	router.GET(s.basePath, s.handleWebSocket)
	router.POST(s.basePath+"/rpc", s.handleHTTPRPC)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	if s.closing.Load() {
		c.JSON(http.StatusServiceUnavailable, NewErrorFrame("", ErrCodeUnavailable, "server shutting down"))
		return
	}
	conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
	if err != nil {
		s.logger.Warn("DWP WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	if serveErr := s.serveConn(c.Request.Context(), conn); serveErr != nil {
		s.logger.Debug("DWP session ended", slog.String("error", serveErr.Error()))
	}
}

// serveConn authenticates a session and runs its frame loop.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) error {
	// Auth frames are always JSON (before codec negotiation).
	authData, _, readErr := wsutil.ReadClientData(conn)
	if readErr != nil {
		return fmt.Errorf("dwp: read auth frame: %w", readErr)
	}

	var authFrame Frame
	if err := json.Unmarshal(authData, &authFrame); err != nil {
		//nolint:errcheck // best-effort error response before disconnect
		s.writeFrame(conn, &JSONCodec{}, NewErrorFrame("", ErrCodeBadRequest, "invalid auth frame"))
		return fmt.Errorf("dwp: unmarshal auth frame: %w", err)
	}
	if authFrame.Method != MethodAuth {
		//nolint:errcheck // best-effort error response before disconnect
		s.writeFrame(conn, &JSONCodec{}, NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "first frame must be auth"))
		return fmt.Errorf("dwp: expected auth frame, got %q", authFrame.Method)
	}

	var authReq AuthRequest
	if len(authFrame.Data) > 0 {
		if err := json.Unmarshal(authFrame.Data, &authReq); err != nil {
			//nolint:errcheck // best-effort error response before disconnect
			s.writeFrame(conn, &JSONCodec{}, NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "invalid auth data"))
			return err
		}
	}

	token := authReq.Token
	if token == "" {
		token = authFrame.Token
	}
	identity, authErr := s.auth.Authenticate(ctx, token)
	if authErr != nil {
		//nolint:errcheck // best-effort error response before disconnect
		s.writeFrame(conn, &JSONCodec{}, NewErrorFrame(authFrame.ID, ErrCodeUnauthorized, "authentication failed"))
		return fmt.Errorf("dwp: auth failed: %w", authErr)
	}

	codec := s.defaultCodec
	if authReq.Format != "" {
		negotiated, codecErr := GetCodec(authReq.Format)
		if codecErr != nil {
			//nolint:errcheck // best-effort error response before disconnect
			s.writeFrame(conn, &JSONCodec{}, NewErrorFrame(authFrame.ID, ErrCodeBadRequest, codecErr.Error()))
			return codecErr
		}
		codec = negotiated
	}

	session := NewConnection(GenerateFrameID(), identity, codec)
	session.transport = conn
	s.conns.Add(session)
	defer func() {
		s.conns.Remove(session.ID)
		s.logger.Info("DWP WebSocket disconnected", slog.String("conn_id", session.ID))
	}()

	resp, respErr := NewResponseFrame(authFrame.ID, AuthResponse{
		Format:    codec.Name(),
		SessionID: session.ID,
	})
	if respErr != nil {
		return fmt.Errorf("dwp: marshal auth response: %w", respErr)
	}
	if err := s.writeFrame(conn, &JSONCodec{}, resp); err != nil {
		return err
	}

	s.logger.Info("DWP authenticated",
		slog.String("conn_id", session.ID),
		slog.String("subject", identity.Subject),
		slog.String("codec", codec.Name()),
	)

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			if errors.Is(err, io.EOF) || isClosed(err) {
				return nil
			}
			return err
		}
		if op == ws.OpClose {
			return nil
		}

		session.Touch()

		frame, decErr := codec.Decode(data)
		if decErr != nil {
			s.write(conn, codec, NewErrorFrame("", ErrCodeBadRequest, "invalid frame: "+decErr.Error()))
			continue
		}

		if frame.Type == FramePing {
			s.write(conn, codec, &Frame{
				ID:        GenerateFrameID(),
				Type:      FramePong,
				CorrelID:  frame.ID,
				Timestamp: frame.Timestamp,
			})
			continue
		}

		if reqScope := RequiredScope(frame.Method); reqScope != "" && !identity.HasScope(reqScope) {
			s.write(conn, codec, NewErrorFrame(frame.ID, ErrCodeForbidden, "insufficient permissions"))
			continue
		}

		if respFrame := s.handler.Handle(ctx, frame, session); respFrame != nil {
			s.write(conn, codec, respFrame)
		}
	}
}

func (s *Server) write(conn net.Conn, codec Codec, frame *Frame) {
	if err := s.writeFrame(conn, codec, frame); err != nil {
		s.logger.Warn("failed to write frame",
			slog.String("type", string(frame.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// writeFrame encodes a frame and writes it as a text or binary message.
func (s *Server) writeFrame(conn net.Conn, codec Codec, frame *Frame) error {
	data, err := codec.Encode(frame)
	if err != nil {
		return err
	}
	op := ws.OpText
	if codec.Binary() {
		op = ws.OpBinary
	}
	return wsutil.WriteServerMessage(conn, op, data)
}

func isClosed(err error) bool {
	var closed wsutil.ClosedError
	return errors.As(err, &closed) || errors.Is(err, net.ErrClosed)
}

// handleHTTPRPC handles one frame per HTTP request.
func (s *Server) handleHTTPRPC(c *gin.Context) {
	var frame Frame
	if err := c.ShouldBindJSON(&frame); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorFrame("", ErrCodeBadRequest, "invalid request body"))
		return
	}

	token := frame.Token
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	identity, err := s.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, NewErrorFrame(frame.ID, ErrCodeUnauthorized, "unauthorized"))
		return
	}

	if reqScope := RequiredScope(frame.Method); reqScope != "" && !identity.HasScope(reqScope) {
		c.JSON(http.StatusForbidden, NewErrorFrame(frame.ID, ErrCodeForbidden, "forbidden"))
		return
	}

	conn := NewConnection("rpc-"+GenerateFrameID(), identity, &JSONCodec{})
	resp := s.handler.Handle(c.Request.Context(), &frame, conn)
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}

	status := http.StatusOK
	if resp.Type == FrameErr && resp.Error != nil {
		status = resp.Error.Code
		if status < 100 || status > 599 {
			status = http.StatusInternalServerError
		}
	}
	c.JSON(status, resp)
}
