package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// AccessPoint hosts the open network the form is served on
type AccessPoint interface {
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context) error
}

// Portal brings up the access point and the form until credentials arrive
type Portal struct {
	ap           AccessPoint
	name         string
	listenAddr   string
	restartDelay time.Duration
	saver        Saver
	logger       *slog.Logger
}

// NewPortal creates a portal serving on listenAddr inside access point name
func NewPortal(ap AccessPoint, name, listenAddr string, restartDelay time.Duration, saver Saver, logger *slog.Logger) *Portal {
	return &Portal{
		ap:           ap,
		name:         name,
		listenAddr:   listenAddr,
		restartDelay: restartDelay,
		saver:        saver,
		logger:       logger,
	}
}

// Run blocks until credentials have been stored and the restart delay has
// passed. A nil error means the device should restart.
func (p *Portal) Run(ctx context.Context) error {
	if err := p.ap.Start(ctx, p.name); err != nil {
		return err
	}
	defer func() {
		if err := p.ap.Stop(context.Background()); err != nil {
			p.logger.Warn("stopping access point", "error", err)
		}
	}()
	p.logger.Info("access point up", "name", p.name)

	ln, err := net.Listen("tcp", p.listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", p.listenAddr, err)
	}

	return NewServer(p.saver, p.logger).Serve(ctx, ln, p.restartDelay)
}
