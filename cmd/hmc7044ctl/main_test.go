package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shiwa/hmc7044/internal/config"
	"github.com/shiwa/hmc7044/pkg/clk"
	"github.com/shiwa/hmc7044/pkg/hmc7044"
)

func TestApplyRates(t *testing.T) {
	dev, err := hmc7044.New(context.Background(), hmc7044.NewEmulator(), hmc7044.Config{
		VCXO:         122_880_000,
		PLL2:         2_949_120_000,
		Channels:     []hmc7044.ChannelSpec{{Num: 1, Divider: 8}, {Num: 4, Divider: 8}},
		ExportClocks: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	reg := clk.NewRegistry()
	if err := reg.Register(dev.Clocks()...); err != nil {
		t.Fatal(err)
	}

	if err := applyRates(dev, reg, []string{"1=245.76MHz", "clock_4=983040000"}); err != nil {
		t.Fatal(err)
	}
	if r, _ := dev.RecalcRate(1); r != 245_760_000 {
		t.Errorf("канал 1: %d Hz", r)
	}
	if r, _ := dev.RecalcRate(4); r != 983_040_000 {
		t.Errorf("канал 4: %d Hz", r)
	}

	for _, bad := range []string{"1", "1=fast", "9=100MHz", "clock_x=1MHz"} {
		if err := applyRates(dev, reg, []string{bad}); err == nil {
			t.Errorf("%q: ожидали ошибку", bad)
		}
	}
	if err := applyRates(dev, reg, []string{"clock_x=1MHz"}); !errors.Is(err, clk.ErrNotFound) {
		t.Errorf("неизвестное имя: %v", err)
	}
}

func TestLoadConfig_DefaultWhenMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := loadConfig("")
	if err != nil || cfg.Device.Variant != "hmc7044" {
		t.Errorf("loadConfig(\"\") = %+v, %v", cfg, err)
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("явно указанный отсутствующий файл — ошибка")
	}
}

// closingBus — эмулятор, считающий вызовы Close.
type closingBus struct {
	*hmc7044.Emulator
	closed int
}

func (b *closingBus) Close() error { b.closed++; return nil }

func TestRun_ClosesBus(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Log.Quiet = true
	cfg.Device.Channels = []config.ChannelConfig{{Num: 2, Divider: 24}}

	ok := &closingBus{Emulator: hmc7044.NewEmulator()}
	if err := run(ctx, options{sets: rateFlags{"2=245.76MHz"}}, cfg, ok); err != nil {
		t.Fatal(err)
	}
	if ok.closed != 1 {
		t.Errorf("успешный запуск: Close вызван %d раз", ok.closed)
	}

	badSet := &closingBus{Emulator: hmc7044.NewEmulator()}
	if err := run(ctx, options{sets: rateFlags{"9=100MHz"}}, cfg, badSet); !errors.Is(err, hmc7044.ErrChannelNotFound) {
		t.Errorf("ожидали ErrChannelNotFound, получили %v", err)
	}
	if badSet.closed != 1 {
		t.Errorf("ошибка -set: Close вызван %d раз", badSet.closed)
	}

	bad := *cfg
	bad.Device.PLL2 = 3_300_000_000
	badSetup := &closingBus{Emulator: hmc7044.NewEmulator()}
	if err := run(ctx, options{}, &bad, badSetup); !errors.Is(err, hmc7044.ErrVCOOutOfRange) {
		t.Errorf("ожидали ErrVCOOutOfRange, получили %v", err)
	}
	if badSetup.closed != 1 {
		t.Errorf("ошибка настройки: Close вызван %d раз", badSetup.closed)
	}
}
