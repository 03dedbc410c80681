// Package spibus — транспорт регистрового доступа к микросхеме по SPI:
// spidev через periph на Linux, при необходимости с chip select на GPIO.
package spibus

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/shiwa/hmc7044/internal/logging"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

var (
	// ErrClosed — передача после Close.
	ErrClosed = errors.New("spibus: device closed")
	// ErrBusy — устройство занято другим процессом (flock).
	ErrBusy = errors.New("spibus: device is locked by another process")
)

// DefaultSpeed — частота SCLK по умолчанию; HMC7044 допускает до 10 МГц.
const DefaultSpeed = 10 * physic.MegaHertz

// Options — параметры открытия порта.
type Options struct {
	// Port — имя порта periph ("SPI0.0") или путь spidev ("/dev/spidev0.0").
	Port  string
	Speed physic.Frequency
	Mode  spi.Mode
	// Exclusive — взять flock на узел spidev на время работы.
	Exclusive bool
	// NoCS — не трогать аппаратный CS; SEN ведёт GPIO (см. ChipSelect).
	NoCS bool
}

// Device — открытый порт spidev. Реализует hmc7044.Bus, drivers.SPI и io.Closer.
type Device struct {
	mu     sync.Mutex
	port   spi.PortCloser
	conn   spi.Conn
	lock   *os.File
	name   string
	logger *logging.Logger
}

// Open инициализирует драйверы periph, открывает порт и настраивает соединение.
func Open(opts Options) (*Device, error) {
	if opts.Port == "" {
		return nil, errors.New("spibus: empty port name")
	}
	if opts.Speed == 0 {
		opts.Speed = DefaultSpeed
	}
	logger := logging.NewLogger("spi-" + opts.Port)
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	d := &Device{name: opts.Port, logger: logger}
	if opts.Exclusive {
		f, err := lockFile(DevicePath(opts.Port))
		if err != nil {
			return nil, err
		}
		d.lock = f
	}

	port, err := spireg.Open(opts.Port)
	if err != nil {
		d.unlock()
		return nil, fmt.Errorf("spireg open %s: %w", opts.Port, err)
	}
	mode := opts.Mode
	if opts.NoCS {
		mode |= spi.NoCS
	}
	conn, err := port.Connect(opts.Speed, mode, 8)
	if err != nil {
		port.Close()
		d.unlock()
		return nil, fmt.Errorf("spi connect %s: %w", opts.Port, err)
	}
	d.port, d.conn = port, conn
	logger.Info("opened %s at %s, mode %s", opts.Port, opts.Speed, mode)
	return d, nil
}

// Tx — полнодуплексная передача; r == nil для записи без чтения.
func (d *Device) Tx(w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ErrClosed
	}
	if err := d.conn.Tx(w, r); err != nil {
		return fmt.Errorf("spi tx %s: %w", d.name, err)
	}
	return nil
}

// Transfer передаёт один байт и возвращает принятый.
func (d *Device) Transfer(b byte) (byte, error) {
	var r [1]byte
	if err := d.Tx([]byte{b}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

var _ drivers.SPI = (*Device)(nil)

// Close закрывает порт и снимает блокировку.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port, d.conn = nil, nil
	d.unlock()
	return err
}

func (d *Device) String() string { return d.name }

func (d *Device) unlock() {
	if d.lock == nil {
		return
	}
	if err := unlockFile(d.lock); err != nil {
		d.logger.Warn("unlock %s: %v", d.lock.Name(), err)
	}
	d.lock = nil
}

// DevicePath — путь узла spidev для имени порта periph: "SPI1.0" → "/dev/spidev1.0".
func DevicePath(port string) string {
	if strings.HasPrefix(port, "/dev/") {
		return port
	}
	var bus, cs int
	if _, err := fmt.Sscanf(strings.ToUpper(port), "SPI%d.%d", &bus, &cs); err == nil {
		return fmt.Sprintf("/dev/spidev%d.%d", bus, cs)
	}
	return port
}
