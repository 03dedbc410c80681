package hmc7044

import "fmt"

// Status — декодированные регистры ALARM_READBACK и PLL1_STATUS.
type Status struct {
	AlarmReadback byte `json:"alarm_readback"`
	PLL1Status    byte `json:"pll1_status"`

	PLL1FSMState    uint8 `json:"pll1_fsm_state"`
	PLL1ActiveCLKIn uint8 `json:"pll1_active_clkin"`
	PLL2Locked      bool  `json:"pll2_locked"`
	SysrefSynced    bool  `json:"sysref_synced"`
	CLKOutPhaseOK   bool  `json:"clk_out_phase_ok"`
	PLL1PLL2Locked  bool  `json:"pll1_pll2_locked"`
	SyncReqPending  bool  `json:"sync_req_pending"`
}

// PLL1 FSM (PLL1_STATUS биты 2:0).
var pll1FSMStates = [8]string{
	"reset", "acquisition", "locked", "invalid", "holdover",
	"dac assisted release from holdover", "invalid", "invalid",
}

// PLL1FSMString — текстовое имя состояния FSM PLL1.
func (s Status) PLL1FSMString() string {
	return pll1FSMStates[s.PLL1FSMState&0x7]
}

func (s Status) String() string {
	return fmt.Sprintf("pll1=%s clkin%d pll2_lock=%t pll1_pll2_lock=%t sysref_sync=%t phase=%t sync_req=%t",
		s.PLL1FSMString(), s.PLL1ActiveCLKIn, s.PLL2Locked, s.PLL1PLL2Locked,
		s.SysrefSynced, s.CLKOutPhaseOK, s.SyncReqPending)
}

func decodeStatus(alarm, pll1 byte) Status {
	return Status{
		AlarmReadback:   alarm,
		PLL1Status:      pll1,
		PLL1FSMState:    pll1 & 0x7,
		PLL1ActiveCLKIn: (pll1 >> 3) & 0x3,
		PLL2Locked:      alarm&0x01 != 0,
		SysrefSynced:    alarm&0x02 != 0,
		CLKOutPhaseOK:   alarm&0x04 != 0,
		PLL1PLL2Locked:  alarm&0x08 != 0,
		SyncReqPending:  alarm&0x10 != 0,
	}
}

// Status читает регистры состояния и аварий.
func (d *Device) Status() (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	alarm, err := d.read(RegAlarmReadback)
	if err != nil {
		return Status{}, fmt.Errorf("read alarm readback: %w", err)
	}
	pll1, err := d.read(RegPLL1Status)
	if err != nil {
		return Status{}, fmt.Errorf("read pll1 status: %w", err)
	}
	return decodeStatus(alarm, pll1), nil
}

// ReadRegister — отладочное чтение произвольного регистра.
func (d *Device) ReadRegister(reg uint16) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.read(reg)
}

// WriteRegister — отладочная запись произвольного регистра.
func (d *Device) WriteRegister(reg uint16, val byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(reg, val)
}
