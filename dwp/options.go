package dwp

import "log/slog"

// Option configures a Server.
type Option func(*Server)

// WithAuth sets the authenticator. If not set, NoopAuthenticator is used
// (development mode).
func WithAuth(auth Authenticator) Option {
	return func(s *Server) { s.auth = auth }
}

// WithCodec sets the default codec. Clients can override it via the auth
// frame's format field.
func WithCodec(codec Codec) Option {
	return func(s *Server) { s.defaultCodec = codec }
}

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithPath sets the base path for protocol endpoints. Default is "/dwp".
func WithPath(path string) Option {
	return func(s *Server) { s.basePath = path }
}
