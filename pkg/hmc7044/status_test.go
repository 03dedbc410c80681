package hmc7044

import (
	"strings"
	"testing"
)

func TestDecodeStatus(t *testing.T) {
	s := decodeStatus(0x0B, 0x0A) // pll2 lock, sysref sync, pll1+pll2 lock; locked on clkin1
	if !s.PLL2Locked || !s.SysrefSynced || !s.PLL1PLL2Locked {
		t.Errorf("биты блокировки не разобраны: %+v", s)
	}
	if s.CLKOutPhaseOK || s.SyncReqPending {
		t.Errorf("лишние флаги: %+v", s)
	}
	if s.PLL1FSMState != 2 || s.PLL1FSMString() != "locked" {
		t.Errorf("FSM = %d (%s), ожидали locked", s.PLL1FSMState, s.PLL1FSMString())
	}
	if s.PLL1ActiveCLKIn != 1 {
		t.Errorf("активный вход CLKIN%d, ожидали 1", s.PLL1ActiveCLKIn)
	}
	if str := s.String(); !strings.Contains(str, "pll1=locked") || !strings.Contains(str, "clkin1") {
		t.Errorf("String() = %q", str)
	}

	h := decodeStatus(0x10, 0x04)
	if h.PLL1FSMString() != "holdover" || !h.SyncReqPending {
		t.Errorf("ожидали holdover и запрос синхронизации: %+v", h)
	}
}

func TestDevice_Status(t *testing.T) {
	d, emu := newTestDevice(t, testConfig7044())
	emu.SetReg(RegAlarmReadback, 0x0F)
	emu.SetReg(RegPLL1Status, 0x12) // clkin2, locked
	emu.Reset()

	s, err := d.Status()
	if err != nil {
		t.Fatal(err)
	}
	if s.AlarmReadback != 0x0F || s.PLL1Status != 0x12 {
		t.Errorf("сырые значения %02x/%02x", s.AlarmReadback, s.PLL1Status)
	}
	if !s.CLKOutPhaseOK || s.PLL1ActiveCLKIn != 2 || s.PLL1FSMString() != "locked" {
		t.Errorf("Status() = %+v", s)
	}
	if len(emu.Writes()) != 0 {
		t.Error("Status не должен писать регистры")
	}
}

func TestDevice_RawRegisterAccess(t *testing.T) {
	d, emu := newTestDevice(t, testConfig7044())
	if err := d.WriteRegister(RegPLL1RefPrioCtrl, 0x1B); err != nil {
		t.Fatal(err)
	}
	if emu.Reg(RegPLL1RefPrioCtrl) != 0x1B {
		t.Errorf("WriteRegister не дошёл до регистра")
	}
	v, err := d.ReadRegister(RegPLL1RefPrioCtrl)
	if err != nil || v != 0x1B {
		t.Errorf("ReadRegister = 0x%02x, %v", v, err)
	}
	if v, _ := d.ReadRegister(RegVTunePreset); v != 0x04 {
		t.Errorf("VTUNE_PRESET = 0x%02x, ожидали 0x04", v)
	}
}

func TestEmulator_InstructionDecode(t *testing.T) {
	emu := NewEmulator()
	// запись 0x5A в 0x0C8: R/W=0, один байт
	if err := emu.Tx([]byte{0x00, 0xC8, 0x5A}, nil); err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 3)
	if err := emu.Tx([]byte{0x80, 0xC8, 0x00}, r); err != nil {
		t.Fatal(err)
	}
	if r[2] != 0x5A {
		t.Errorf("чтение вернуло 0x%02x", r[2])
	}
	if err := emu.Tx([]byte{0x00, 0x01}, nil); err == nil {
		t.Error("ожидали ошибку для короткой передачи")
	}
	if got := emu.Writes(); len(got) != 1 || got[0] != (Write{0x0C8, 0x5A}) {
		t.Errorf("журнал %+v", got)
	}
}
