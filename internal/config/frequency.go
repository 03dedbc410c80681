package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// Frequency — частота в Гц. В YAML допускается целое число Гц или строка с единицами ("122.88MHz").
type Frequency uint64

// ParseFrequency разбирает "2949120000", "2949.12MHz", "2.94912GHz".
func ParseFrequency(s string) (Frequency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if hz, err := strconv.ParseUint(s, 10, 64); err == nil {
		return Frequency(hz), nil
	}
	var f physic.Frequency
	if err := f.Set(s); err != nil {
		return 0, fmt.Errorf("frequency %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("frequency %q: negative", s)
	}
	return Frequency(f / physic.Hertz), nil
}

// Hz — значение в герцах.
func (f Frequency) Hz() uint64 { return uint64(f) }

// Physic — значение в единицах periph (для настройки SPI).
func (f Frequency) Physic() physic.Frequency { return physic.Frequency(f) * physic.Hertz }

func (f Frequency) String() string { return f.Physic().String() }

// UnmarshalYAML принимает число или строку с единицами.
func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: frequency must be a scalar", value.Line)
	}
	v, err := ParseFrequency(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*f = v
	return nil
}

// MarshalYAML пишет целое число Гц: String() округляет до 4 значащих цифр.
func (f Frequency) MarshalYAML() (interface{}, error) {
	return uint64(f), nil
}
