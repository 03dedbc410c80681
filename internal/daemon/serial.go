package daemon

import (
	"context"
	"fmt"

	"github.com/shiwa/hmc7044/internal/config"
	"github.com/shiwa/hmc7044/internal/logging"
	"go.bug.st/serial"
)

// RunSerialConsole открывает порт и обслуживает консоль до отмены ctx.
func RunSerialConsole(ctx context.Context, cfg config.ConsoleConfig, console *Console) error {
	logger := logging.NewLogger("console")
	port, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	go func() {
		<-ctx.Done()
		port.Close()
	}()
	logger.Info("serial console on %s at %d baud", cfg.Port, cfg.Baud)
	for ctx.Err() == nil {
		if err := console.Serve(ctx, port); err != nil && ctx.Err() == nil {
			port.Close()
			return err
		}
	}
	return nil
}
