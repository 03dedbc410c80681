package hmc7044

import (
	"errors"
	"io"
	"sync"

	"tinygo.org/x/drivers"
)

// CSBus — Bus поверх drivers.SPI без аппаратного chip select: линия SEN
// управляется selectFn. Подходит для прошивок TinyGo и для spidev в режиме NoCS.
type CSBus struct {
	mu       sync.Mutex
	spi      drivers.SPI
	selectFn func(active bool)
}

// NewCSBus оборачивает spi; до первой передачи линия выбора неактивна.
func NewCSBus(spi drivers.SPI, selectFn func(active bool)) (*CSBus, error) {
	if spi == nil || selectFn == nil {
		return nil, errors.New("hmc7044: nil spi or chip select")
	}
	selectFn(false)
	return &CSBus{spi: spi, selectFn: selectFn}, nil
}

// Tx выполняет одну транзакцию под chip select.
func (b *CSBus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selectFn(true)
	defer b.selectFn(false)
	return b.spi.Tx(w, r)
}

// Close закрывает нижележащую шину, если она это поддерживает.
func (b *CSBus) Close() error {
	if c, ok := b.spi.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
