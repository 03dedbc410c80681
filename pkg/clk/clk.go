// Package clk — обобщённый провайдер тактов: именованные дескрипторы
// выходов микросхем тактирования с операциями recalc/round/set rate.
package clk

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound — дескриптор с таким именем не зарегистрирован.
var ErrNotFound = errors.New("clk: clock not found")

// Provider — устройство, выходы которого адресуются аппаратным номером канала.
type Provider interface {
	RecalcRate(ch uint32) (uint64, error)
	RoundRate(rate uint64) (uint64, error)
	SetRate(ch uint32, rate uint64) error
}

// Clock — дескриптор одного выхода.
type Clock struct {
	name     string
	hwCh     uint32
	provider Provider
}

// New создаёт дескриптор выхода hwCh устройства p.
func New(name string, hwCh uint32, p Provider) *Clock {
	return &Clock{name: name, hwCh: hwCh, provider: p}
}

func (c *Clock) Name() string      { return c.name }
func (c *Clock) HWChannel() uint32 { return c.hwCh }

// RecalcRate возвращает текущую частоту выхода, Гц.
func (c *Clock) RecalcRate() (uint64, error) {
	return c.provider.RecalcRate(c.hwCh)
}

// RoundRate возвращает ближайшую достижимую частоту для rate.
func (c *Clock) RoundRate(rate uint64) (uint64, error) {
	return c.provider.RoundRate(rate)
}

// SetRate программирует делитель выхода под rate.
func (c *Clock) SetRate(rate uint64) error {
	return c.provider.SetRate(c.hwCh, rate)
}

// Registry — набор дескрипторов по имени.
type Registry struct {
	mu     sync.RWMutex
	clocks map[string]*Clock
}

func NewRegistry() *Registry {
	return &Registry{clocks: make(map[string]*Clock)}
}

// Register добавляет дескрипторы; при повторном имени не добавляет ни одного.
func (r *Registry) Register(clocks ...*Clock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch := make(map[string]bool, len(clocks))
	for _, c := range clocks {
		if _, ok := r.clocks[c.name]; ok || batch[c.name] {
			return fmt.Errorf("clk: duplicate clock %q", c.name)
		}
		batch[c.name] = true
	}
	for _, c := range clocks {
		r.clocks[c.name] = c
	}
	return nil
}

// Get возвращает дескриптор по имени.
func (r *Registry) Get(name string) (*Clock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clocks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return c, nil
}

// List возвращает дескрипторы, отсортированные по номеру канала.
func (r *Registry) List() []*Clock {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Clock, 0, len(r.clocks))
	for _, c := range r.clocks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].hwCh != out[j].hwCh {
			return out[i].hwCh < out[j].hwCh
		}
		return out[i].name < out[j].name
	})
	return out
}
