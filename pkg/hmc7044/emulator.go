package hmc7044

import (
	"errors"
	"sync"
)

// Write — одна запись регистра в журнале эмулятора.
type Write struct {
	Reg uint16
	Val byte
}

// Emulator — регистровый файл HMC7044 в памяти, реализует Bus.
// Разбирает слово инструкции так же, как микросхема; используется в тестах и в режиме -dry-run.
type Emulator struct {
	mu     sync.Mutex
	regs   [1 << 12]byte
	writes []Write
	// FailAt — номер записи (с 1), на которой Tx вернёт ошибку; 0 — не сбоить.
	FailAt int
}

var errEmulatorFault = errors.New("emulator: injected bus fault")

func NewEmulator() *Emulator { return &Emulator{} }

// Tx обрабатывает трёхбайтовую транзакцию: инструкция + данные.
func (e *Emulator) Tx(w, r []byte) error {
	if len(w) < 3 {
		return errors.New("emulator: short transfer")
	}
	if r != nil && len(r) != len(w) {
		return errors.New("emulator: read buffer length mismatch")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cmd := uint16(w[0])<<8 | uint16(w[1])
	reg := instrAddr(cmd)
	if cmd&instrRead != 0 {
		if r != nil {
			r[2] = e.regs[reg]
		}
		return nil
	}
	if e.FailAt > 0 && len(e.writes)+1 == e.FailAt {
		return errEmulatorFault
	}
	e.writes = append(e.writes, Write{Reg: reg, Val: w[2]})
	e.regs[reg] = w[2]
	return nil
}

// Reg возвращает текущее значение регистра.
func (e *Emulator) Reg(reg uint16) byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.regs[instrAddr(reg)]
}

// SetReg задаёт значение регистра (например, состояние для readback).
func (e *Emulator) SetReg(reg uint16, val byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.regs[instrAddr(reg)] = val
}

// Writes возвращает копию журнала записей.
func (e *Emulator) Writes() []Write {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Write(nil), e.writes...)
}

// Reset очищает журнал записей.
func (e *Emulator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writes = nil
}
