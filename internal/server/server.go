package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

const _drainTimeout = 5 * time.Second

type HTTPServer struct {
	s *http.Server
}

func NewHTTPServer(ctx context.Context, port string, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		s: &http.Server{
			Handler:           handler,
			Addr:              ":" + port,
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext: func(net.Listener) context.Context {
				return ctx
			},
		},
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
// In-flight dispatches get a bounded window to finish so a shutdown during
// a fan-out does not drop half the accounts' acknowledgements.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.s.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), _drainTimeout)
		defer cancel()
		return s.s.Shutdown(drainCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
