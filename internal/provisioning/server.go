// Package provisioning serves the captive WiFi setup form.
package provisioning

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jgoulah/thermonode/pkg/models"
)

//go:embed form.html
var setupPage []byte

const savedPage = "<h3>WiFi Saved! Rebooting...</h3>"

// State is the provisioning state
type State int

const (
	AwaitingCredentials State = iota
	CredentialsReceived
)

func (s State) String() string {
	if s == CredentialsReceived {
		return "credentials received"
	}
	return "awaiting credentials"
}

// Saver persists submitted credentials
type Saver interface {
	Save(c models.Credentials) error
}

// Server collects credentials over HTTP and persists them
type Server struct {
	saver  Saver
	logger *slog.Logger

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// NewServer creates a server in AwaitingCredentials
func NewServer(saver Saver, logger *slog.Logger) *Server {
	return &Server{
		saver:  saver,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// State returns the current state
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once credentials have been stored
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleForm)
	mux.HandleFunc("POST /save", s.handleSave)
	return mux
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write(setupPage)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	creds := models.Credentials{
		SSID:     r.PostFormValue("ssid"),
		Password: r.PostFormValue("password"),
	}
	// Partial submissions are ignored and the form stays up.
	if !creds.Valid() {
		s.logger.Debug("ignoring incomplete submission")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == CredentialsReceived {
		return
	}

	if err := s.saver.Save(creds); err != nil {
		s.logger.Error("saving credentials", "error", err)
		http.Error(w, "could not save credentials", http.StatusInternalServerError)
		return
	}

	s.logger.Info("credentials saved", "ssid", creds.SSID)
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, savedPage)

	s.state = CredentialsReceived
	close(s.done)
}

// Serve handles requests on ln until credentials are stored, waits
// restartDelay so the confirmation reaches the browser, then shuts down.
// It returns nil once credentials are stored.
func (s *Server) Serve(ctx context.Context, ln net.Listener, restartDelay time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("provisioning form listening", "addr", ln.Addr().String())

	var result error
	select {
	case <-s.done:
		select {
		case <-time.After(restartDelay):
		case <-ctx.Done():
		}
	case <-ctx.Done():
		result = ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("serving provisioning form: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warn("shutting down provisioning form", "error", err)
	}

	return result
}
