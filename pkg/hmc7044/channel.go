package hmc7044

import (
	"context"
	"fmt"

	"github.com/shiwa/hmc7044/pkg/clk"
)

// Проверка на этапе компиляции: *Device реализует clk.Provider.
var _ clk.Provider = (*Device)(nil)

func (d *Device) findChannel(num uint32) *ChannelSpec {
	for i := range d.cfg.Channels {
		if d.cfg.Channels[i].Num == num {
			return &d.cfg.Channels[i]
		}
	}
	return nil
}

// RecalcRate возвращает частоту канала num: PLL2 / делитель канала.
func (d *Device) RecalcRate(num uint32) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := d.findChannel(num)
	if ch == nil {
		return 0, fmt.Errorf("%w: %d", ErrChannelNotFound, num)
	}
	return d.pll2Hz / uint64(ch.Divider), nil
}

// RoundRate возвращает ближайшую к rate частоту, достижимую делителем канала.
func (d *Device) RoundRate(rate uint64) (uint64, error) {
	if rate == 0 {
		return 0, ErrInvalidRate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	div := CalcOutDiv(rate, d.pll2Hz)
	return DivRoundClosest(d.pll2Hz, uint64(div)), nil
}

// SetRate пересчитывает делитель канала num под rate и записывает его (LSB, затем MSB).
func (d *Device) SetRate(num uint32, rate uint64) error {
	if rate == 0 {
		return ErrInvalidRate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := d.findChannel(num)
	if ch == nil || ch.Num >= NumChannels {
		return fmt.Errorf("%w: %d", ErrChannelNotFound, num)
	}
	div := CalcOutDiv(rate, d.pll2Hz)
	ch.Divider = div

	if err := d.write(RegChOutCtrl1(ch.Num), lsb(div)); err != nil {
		return err
	}
	if err := d.write(RegChOutCtrl2(ch.Num), byte(div>>8)); err != nil {
		return err
	}
	d.logger.Info("channel %d: divider %d, rate %d Hz", num, div, d.pll2Hz/uint64(div))
	return nil
}

// Restart — перезапуск FSM делителей без повторной настройки PLL.
func (d *Device) Restart(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := &regWriter{d: d, ctx: ctx}
	d.restart(w)
	return w.err
}

// RequestPulse — запрос генератора импульсов SYSREF (REQ_MODE_0, бит 2).
func (d *Device) RequestPulse(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := &regWriter{d: d, ctx: ctx}
	w.write(RegReqMode0, d.reqMode0Idle()|PulseGenReq)
	w.delay(restartDelay)
	w.write(RegReqMode0, d.reqMode0Idle())
	return w.err
}
