// Package daemon — управляющая поверхность hmc7044ctl: HTTP JSON API,
// консоль по SSH и на последовательном порту.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/shiwa/hmc7044/internal/config"
	"github.com/shiwa/hmc7044/internal/logging"
	"github.com/shiwa/hmc7044/pkg/hmc7044"
)

// Controller — операции над микросхемой, доступные из API и консоли.
// Реализуется *hmc7044.Device.
type Controller interface {
	Variant() hmc7044.Variant
	Status() (hmc7044.Status, error)
	Plan() hmc7044.Plan
	PLL2Rate() uint64
	Channels() []hmc7044.ChannelSpec
	RecalcRate(ch uint32) (uint64, error)
	RoundRate(rate uint64) (uint64, error)
	SetRate(ch uint32, rate uint64) error
	Restart(ctx context.Context) error
	RequestPulse(ctx context.Context) error
	ReadRegister(reg uint16) (byte, error)
	WriteRegister(reg uint16, val byte) error
}

var _ Controller = (*hmc7044.Device)(nil)

const shutdownTimeout = 5 * time.Second

// Daemon запускает включённые в конфигурации серверы.
type Daemon struct {
	cfg     *config.Config
	dev     Controller
	console *Console
	logger  *logging.Logger
}

func New(cfg *config.Config, dev Controller) *Daemon {
	return &Daemon{
		cfg:     cfg,
		dev:     dev,
		console: NewConsole(dev),
		logger:  logging.NewLogger("daemon"),
	}
}

// Run блокируется до отмены ctx или ошибки одного из серверов.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		once sync.Once
		err  error
	)
	fail := func(e error) {
		if e == nil || errors.Is(e, context.Canceled) {
			return
		}
		once.Do(func() { err = e })
		cancel()
	}
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e := fn(ctx); e != nil {
				fail(fmt.Errorf("%s: %w", name, e))
			}
		}()
	}

	var sshSrv *SSHServer
	if d.cfg.SSH.Enabled {
		srv, e := NewSSHServer(d.cfg.SSH, d.console)
		if e != nil {
			return e
		}
		sshSrv = srv
	}

	started := 0
	if d.cfg.HTTP.Enabled {
		start("http", d.runHTTP)
		started++
	}
	if sshSrv != nil {
		start("ssh", func(ctx context.Context) error {
			ln, err := net.Listen("tcp", d.cfg.SSH.Listen)
			if err != nil {
				return err
			}
			return sshSrv.Serve(ctx, ln)
		})
		started++
	}
	if d.cfg.Console.Enabled {
		start("serial console", func(ctx context.Context) error {
			return RunSerialConsole(ctx, d.cfg.Console, d.console)
		})
		started++
	}
	if started == 0 {
		d.logger.Warn("no servers enabled, waiting for shutdown")
	}
	<-ctx.Done()
	wg.Wait()
	return err
}

func (d *Daemon) runHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              d.cfg.HTTP.Listen,
		Handler:           NewHTTPHandler(d.dev),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	d.logger.Info("http listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
