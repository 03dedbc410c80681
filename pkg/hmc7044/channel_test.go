package hmc7044

import (
	"errors"
	"testing"
)

func TestRecalcRate(t *testing.T) {
	d, _ := newTestDevice(t, testConfig7044())

	rate, err := d.RecalcRate(2)
	if err != nil || rate != 122_880_000 {
		t.Errorf("RecalcRate(2) = %d, %v; ожидали 122880000", rate, err)
	}
	rate, err = d.RecalcRate(3)
	if err != nil || rate != 960_000 {
		t.Errorf("RecalcRate(3) = %d, %v; ожидали 960000", rate, err)
	}
	if _, err := d.RecalcRate(5); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("RecalcRate(5): ожидали ErrChannelNotFound, получили %v", err)
	}
}

func TestRoundRate(t *testing.T) {
	d, emu := newTestDevice(t, testConfig7044())
	emu.Reset()

	tests := []struct {
		rate, want uint64
	}{
		{122_880_000, 122_880_000},
		{983_040_000, 983_040_000},
		{421_303_000, 491_520_000},
		{590_000_000, 589_824_000},
		{1000, 720_352},
		{5_000_000_000, 2_949_120_000},
	}
	for _, tt := range tests {
		got, err := d.RoundRate(tt.rate)
		if err != nil {
			t.Fatalf("RoundRate(%d): %v", tt.rate, err)
		}
		if got != tt.want {
			t.Errorf("RoundRate(%d) = %d, ожидали %d", tt.rate, got, tt.want)
		}
	}
	if _, err := d.RoundRate(0); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("RoundRate(0): ожидали ErrInvalidRate, получили %v", err)
	}
	if n := len(emu.Writes()); n != 0 {
		t.Errorf("RoundRate не должен писать регистры, записано %d", n)
	}
}

func TestSetRate(t *testing.T) {
	d, emu := newTestDevice(t, testConfig7044())

	t.Run("divider 3", func(t *testing.T) {
		emu.Reset()
		if err := d.SetRate(2, 983_040_000); err != nil {
			t.Fatal(err)
		}
		want := []Write{{RegChOutCtrl1(2), 3}, {RegChOutCtrl2(2), 0}}
		got := emu.Writes()
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("записи %+v, ожидали %+v", got, want)
		}
		if rate, _ := d.RecalcRate(2); rate != 983_040_000 {
			t.Errorf("RecalcRate после SetRate = %d", rate)
		}
	})

	t.Run("clamped to max divider", func(t *testing.T) {
		emu.Reset()
		if err := d.SetRate(3, 1000); err != nil {
			t.Fatal(err)
		}
		if lo, hi := emu.Reg(RegChOutCtrl1(3)), emu.Reg(RegChOutCtrl2(3)); lo != 0xFE || hi != 0x0F {
			t.Errorf("делитель 4094: LSB=0x%02x MSB=0x%02x", lo, hi)
		}
		if chs := d.Channels(); chs[1].Divider != OutDivMax {
			t.Errorf("сохранённый делитель %d, ожидали %d", chs[1].Divider, OutDivMax)
		}
	})

	t.Run("unknown channel", func(t *testing.T) {
		emu.Reset()
		if err := d.SetRate(9, 100_000_000); !errors.Is(err, ErrChannelNotFound) {
			t.Errorf("ожидали ErrChannelNotFound, получили %v", err)
		}
		if len(emu.Writes()) != 0 {
			t.Error("для неизвестного канала регистры не пишутся")
		}
	})

	t.Run("zero rate", func(t *testing.T) {
		if err := d.SetRate(2, 0); !errors.Is(err, ErrInvalidRate) {
			t.Errorf("ожидали ErrInvalidRate, получили %v", err)
		}
	})

	t.Run("bus fault", func(t *testing.T) {
		emu.Reset()
		emu.FailAt = 2
		defer func() { emu.FailAt = 0 }()
		if err := d.SetRate(2, 245_760_000); !errors.Is(err, errEmulatorFault) {
			t.Errorf("ожидали ошибку шины, получили %v", err)
		}
		if n := len(emu.Writes()); n != 1 {
			t.Errorf("до сбоя должна пройти запись LSB, прошло %d", n)
		}
	})
}

func TestSetRate_ChannelBeyondHardware(t *testing.T) {
	cfg := testConfig7044()
	cfg.Channels = append(cfg.Channels, ChannelSpec{Num: 20, Divider: 4})
	d, _ := newTestDevice(t, cfg)
	if err := d.SetRate(20, 100_000_000); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("канал 20: ожидали ErrChannelNotFound, получили %v", err)
	}
}

func TestClockDescriptor(t *testing.T) {
	cfg := testConfig7044()
	cfg.ExportClocks = true
	d, emu := newTestDevice(t, cfg)
	c := d.Clocks()[3]

	rounded, err := c.RoundRate(122_000_000)
	if err != nil || rounded != 122_880_000 {
		t.Errorf("RoundRate = %d, %v", rounded, err)
	}
	emu.Reset()
	if err := c.SetRate(rounded); err != nil {
		t.Fatal(err)
	}
	if got := emu.Reg(RegChOutCtrl1(3)); got != 24 {
		t.Errorf("делитель clock_3 = %d, ожидали 24", got)
	}
	rate, err := c.RecalcRate()
	if err != nil || rate != 122_880_000 {
		t.Errorf("RecalcRate = %d, %v", rate, err)
	}
	if _, err := d.Clocks()[0].RecalcRate(); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("clock_0 без настроенного канала: ожидали ErrChannelNotFound, получили %v", err)
	}
}
