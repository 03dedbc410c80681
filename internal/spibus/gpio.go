package spibus

import (
	"fmt"

	"github.com/shiwa/hmc7044/internal/logging"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ChipSelect возвращает функцию выбора для hmc7044.NewCSBus: SEN активен низким
// уровнем на GPIO name ("GPIO25", "P1_22" и т.п.).
func ChipSelect(name string) (func(active bool), error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return chipSelect(gpioreg.ByName(name), name)
}

func chipSelect(pin gpio.PinIO, name string) (func(active bool), error) {
	if pin == nil {
		return nil, fmt.Errorf("spibus: gpio %q not found", name)
	}
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("gpio %s: %w", name, err)
	}
	logger := logging.NewLogger("spi-cs-" + name)
	return func(active bool) {
		if err := pin.Out(gpio.Level(!active)); err != nil {
			logger.Error("gpio %s: %v", name, err)
		}
	}, nil
}
