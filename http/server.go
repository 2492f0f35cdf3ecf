package httpsrv

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownGrace = 5 * time.Second

// StopOnSignal shuts every server down once an interrupt, SIGTERM or SIGHUP
// arrives.
func StopOnSignal(servers ...*Server) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	go func(s []*Server) {
		sig := <-signals
		zap.L().Info(sig.String() + " signal caught, stopping server")

		for _, server := range s {
			server.Stop()
		}
	}(servers)
}

// WaitForSignal calls StopOnSignal and waits.
func WaitForSignal(servers ...*Server) {
	StopOnSignal(servers...)
	for _, s := range servers {
		s.Wait()
	}
}

// ServerOption is a configuration option used when constructing a Server
type ServerOption func(s *Server)

// IdleTimeout sets the server's IdleTimeout.
func IdleTimeout(t time.Duration) ServerOption {
	return func(s *Server) {
		s.Server.IdleTimeout = t
	}
}

// ReadTimeout sets the server's ReadTimeout.
func ReadTimeout(t time.Duration) ServerOption {
	return func(s *Server) {
		s.Server.ReadTimeout = t
	}
}

// WriteTimeout sets the server's WriteTimeout.
func WriteTimeout(t time.Duration) ServerOption {
	return func(s *Server) {
		s.Server.WriteTimeout = t
	}
}

// TLS configures the server certs.
func TLS(certContents, keyContents []byte) ServerOption {
	return func(s *Server) {
		cert, err := tls.X509KeyPair(certContents, keyContents)
		if err != nil {
			zap.L().Error("error generating X509KeyPair", zap.Error(err))
			return
		}
		s.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}
	}
}

// NewServer constructs a server that shuts down gracefully: on Stop it waits
// for open requests to complete or time out.
func NewServer(listen string, handler http.Handler, options ...ServerOption) *Server {
	s := &Server{
		Server: &http.Server{
			Addr:              listen,
			Handler:           handler,
			MaxHeaderBytes:    1 << 20,
			ReadHeaderTimeout: 10 * time.Second,
		},
		close: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	for i := range options {
		options[i](s)
	}
	return s
}

// Server wraps http.Server with start, stop and wait.
type Server struct {
	*http.Server
	// close triggers a graceful shutdown of the server.
	close chan struct{}
	// done is closed once the server has completed shutting down.
	done chan struct{}
}

// Close the server. Will try to gracefully shutdown, but if the server takes
// longer than 5 seconds to stop, forcibly shuts it down.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.Shutdown(ctx)
}

// Start serves in the background until Stop is called or listening fails.
func (s *Server) Start() {
	go func() {
		<-s.close
		if err := s.Close(); err != nil {
			zap.L().Error("error shutting down server", zap.Error(err))
		}
	}()

	go func() {
		defer close(s.done)

		var err error
		if s.TLSConfig != nil {
			err = s.ListenAndServeTLS("", "")
		} else {
			err = s.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("error starting server", zap.Error(err), zap.String("addr", s.Addr))
			s.Stop()
		}
	}()

	zap.L().Info("server listening", zap.String("addr", s.Addr), zap.String("protocol", s.Protocol()))
}

// Stop asks the server to shut down and returns immediately. Call Wait to
// block until it has.
func (s *Server) Stop() {
	select {
	case s.close <- struct{}{}:
	default:
	}
}

// Wait blocks until the server has shut down.
func (s *Server) Wait() {
	<-s.done
}

// Protocol returns the protocol supported by this server (http or https).
func (s *Server) Protocol() string {
	if s.Server.TLSConfig != nil {
		return "https"
	}
	return "http"
}
