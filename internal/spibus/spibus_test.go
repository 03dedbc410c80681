package spibus

import (
	"errors"
	"testing"
)

func TestDevicePath(t *testing.T) {
	cases := map[string]string{
		"SPI0.0":         "/dev/spidev0.0",
		"spi1.2":         "/dev/spidev1.2",
		"/dev/spidev3.1": "/dev/spidev3.1",
		"ftdi-spi":       "ftdi-spi",
	}
	for in, want := range cases {
		if got := DevicePath(in); got != want {
			t.Errorf("DevicePath(%q) = %q, ожидали %q", in, got, want)
		}
	}
}

func TestDevice_TxAfterClose(t *testing.T) {
	d := &Device{name: "SPI0.0"}
	if err := d.Tx([]byte{0, 0, 0}, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("ожидали ErrClosed, получили %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close закрытого устройства: %v", err)
	}
}

func TestOpen_EmptyPort(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Error("ожидали ошибку для пустого имени порта")
	}
}

func TestDevice_TransferAfterClose(t *testing.T) {
	d := &Device{name: "SPI0.0"}
	if _, err := d.Transfer(0x5A); !errors.Is(err, ErrClosed) {
		t.Errorf("ожидали ErrClosed, получили %v", err)
	}
}
