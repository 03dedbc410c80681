// Package config — YAML-конфигурация hmc7044ctl: микросхема, SPI, HTTP, SSH, консоль, логирование.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shiwa/hmc7044/pkg/hmc7044"
	"gopkg.in/yaml.v3"
)

// Config — корень файла конфигурации.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	SPI     SPIConfig     `yaml:"spi"`
	HTTP    HTTPConfig    `yaml:"http"`
	SSH     SSHConfig     `yaml:"ssh"`
	Console ConsoleConfig `yaml:"console"`
	Log     LogConfig     `yaml:"log"`
}

// DeviceConfig — параметры микросхемы.
type DeviceConfig struct {
	Variant    string      `yaml:"variant"` // hmc7044, hmc7043
	VCXO       Frequency   `yaml:"vcxo"`
	PLL2       Frequency   `yaml:"pll2"`
	CLKIn      []Frequency `yaml:"clkin"` // до 4 входов, 0 — вход не используется
	PLL1LoopBW Frequency   `yaml:"pll1_loop_bandwidth"`

	SysrefTimerDiv                     uint32 `yaml:"sysref_timer_divider"`
	PulseGeneratorMode                 uint8  `yaml:"pulse_generator_mode"`
	PLL1RefPrioCtrl                    uint8  `yaml:"pll1_ref_prio_ctrl"`
	SyncPinMode                        uint8  `yaml:"sync_pin_mode"`
	CLKIn0RFSyncEnable                 bool   `yaml:"clkin0_rf_sync_enable"`
	CLKIn1VCOInEnable                  bool   `yaml:"clkin1_vcoin_enable"`
	HighPerformanceModeClockDistEnable bool   `yaml:"high_performance_mode_clock_dist_enable"`
	RFReseederDisable                  bool   `yaml:"rf_reseeder_disable"`

	InputBufferMode []uint8 `yaml:"input_buffer_mode"` // CLKIN0..3, OSCIN
	GPIControls     []uint8 `yaml:"gpi_controls"`
	GPOControls     []uint8 `yaml:"gpo_controls"`

	ExportClocks bool            `yaml:"export_clocks"`
	Channels     []ChannelConfig `yaml:"channels"`
}

// ChannelConfig — один выходной канал. Rate задаёт делитель, если Divider не указан.
type ChannelConfig struct {
	Num     uint32    `yaml:"num"`
	Name    string    `yaml:"name"`
	Disable bool      `yaml:"disable"`
	Divider uint32    `yaml:"divider"`
	Rate    Frequency `yaml:"rate"`

	DriverMode                 uint8 `yaml:"driver_mode"`
	DriverImpedance            uint8 `yaml:"driver_impedance"`
	HighPerformanceModeDisable bool  `yaml:"high_performance_mode_disable"`
	StartupModeDynamicEnable   bool  `yaml:"startup_mode_dynamic_enable"`
	DynamicDriverEnable        bool  `yaml:"dynamic_driver_enable"`
	OutputControl0RB4Enable    bool  `yaml:"output_control0_rb4_enable"`
	ForceMuteEnable            bool  `yaml:"force_mute_enable"`
	CoarseDelay                uint8 `yaml:"coarse_delay"`
	FineDelay                  uint8 `yaml:"fine_delay"`
	OutMuxMode                 uint8 `yaml:"out_mux_mode"`
}

// SPIConfig — порт spidev.
type SPIConfig struct {
	Port      string    `yaml:"port"`
	Speed     Frequency `yaml:"speed"`
	Mode      int       `yaml:"mode"`
	Exclusive bool      `yaml:"exclusive"`
	// CSGPIO — GPIO линии SEN; пусто — аппаратный CS контроллера.
	CSGPIO string `yaml:"cs_gpio"`
}

// HTTPConfig — JSON API.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// SSHConfig — интерактивная консоль по SSH.
type SSHConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Listen   string `yaml:"listen"`
	HostKey  string `yaml:"host_key"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ConsoleConfig — консоль на последовательном порту.
type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
}

// LogConfig — уровень и формат журнала.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
	Quiet bool   `yaml:"quiet"`
}

// Default возвращает конфиг по умолчанию: HMC7044, VCXO 122.88 МГц, PLL2 2949.12 МГц.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Variant:        "hmc7044",
			VCXO:           122_880_000,
			PLL2:           2_949_120_000,
			PLL1LoopBW:     hmc7044.DefaultPLL1LoopBW,
			SysrefTimerDiv: 256,
		},
		SPI: SPIConfig{
			Port:  "SPI0.0",
			Speed: 10_000_000,
		},
		HTTP: HTTPConfig{Listen: ":8080"},
		SSH: SSHConfig{
			Listen:  ":2222",
			HostKey: "/etc/hmc7044/ssh_host_ed25519_key",
			User:    "admin",
		},
		Console: ConsoleConfig{
			Port: "/dev/ttyS1",
			Baud: 115200,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load читает конфиг из YAML и подставляет значения по умолчанию.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML-документ.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	if _, err := ParseVariant(c.Device.Variant); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Device.Variant == "" {
		c.Device.Variant = d.Device.Variant
	}
	if c.Device.PLL1LoopBW == 0 {
		c.Device.PLL1LoopBW = d.Device.PLL1LoopBW
	}
	if c.SPI.Port == "" {
		c.SPI.Port = d.SPI.Port
	}
	if c.SPI.Speed == 0 {
		c.SPI.Speed = d.SPI.Speed
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = d.HTTP.Listen
	}
	if c.SSH.Listen == "" {
		c.SSH.Listen = d.SSH.Listen
	}
	if c.SSH.HostKey == "" {
		c.SSH.HostKey = d.SSH.HostKey
	}
	if c.SSH.User == "" {
		c.SSH.User = d.SSH.User
	}
	if c.Console.Port == "" {
		c.Console.Port = d.Console.Port
	}
	if c.Console.Baud == 0 {
		c.Console.Baud = d.Console.Baud
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// ParseVariant — имя модели микросхемы.
func ParseVariant(s string) (hmc7044.Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hmc7044":
		return hmc7044.HMC7044, nil
	case "hmc7043":
		return hmc7044.HMC7043, nil
	}
	return 0, fmt.Errorf("config: unknown variant %q", s)
}

// ToDevice переводит секцию device в hmc7044.Config.
// Каналам с rate без divider делитель рассчитывается от родительской частоты.
func (dc *DeviceConfig) ToDevice() (hmc7044.Config, error) {
	variant, err := ParseVariant(dc.Variant)
	if err != nil {
		return hmc7044.Config{}, err
	}
	cfg := hmc7044.Config{
		Variant:                            variant,
		VCXO:                               dc.VCXO.Hz(),
		PLL2:                               dc.PLL2.Hz(),
		PLL1LoopBW:                         uint32(dc.PLL1LoopBW.Hz()),
		SysrefTimerDiv:                     dc.SysrefTimerDiv,
		PLL1RefPrioCtrl:                    dc.PLL1RefPrioCtrl,
		CLKIn0RFSyncEnable:                 dc.CLKIn0RFSyncEnable,
		CLKIn1VCOInEnable:                  dc.CLKIn1VCOInEnable,
		HighPerformanceModeClockDistEnable: dc.HighPerformanceModeClockDistEnable,
		RFReseederDisable:                  dc.RFReseederDisable,
		SyncPinMode:                        dc.SyncPinMode,
		PulseGenMode:                       dc.PulseGeneratorMode,
		ExportClocks:                       dc.ExportClocks,
	}
	if len(dc.CLKIn) > len(cfg.CLKIn) {
		return cfg, fmt.Errorf("config: %d clkin entries, max %d", len(dc.CLKIn), len(cfg.CLKIn))
	}
	for i, f := range dc.CLKIn {
		cfg.CLKIn[i] = f.Hz()
	}
	if err := copyBytes(cfg.InBufMode[:], dc.InputBufferMode, "input_buffer_mode"); err != nil {
		return cfg, err
	}
	if err := copyBytes(cfg.GPICtrl[:], dc.GPIControls, "gpi_controls"); err != nil {
		return cfg, err
	}
	if err := copyBytes(cfg.GPOCtrl[:], dc.GPOControls, "gpo_controls"); err != nil {
		return cfg, err
	}

	parent := cfg.PLL2
	if variant == hmc7044.HMC7043 {
		parent = cfg.CLKIn[0]
	}
	for _, ch := range dc.Channels {
		if ch.Num >= hmc7044.NumChannels {
			return cfg, fmt.Errorf("config: channel %d out of range 0..%d", ch.Num, hmc7044.NumChannels-1)
		}
		div := ch.Divider
		if div == 0 && ch.Rate != 0 && parent != 0 {
			div = hmc7044.CalcOutDiv(ch.Rate.Hz(), parent)
		}
		cfg.Channels = append(cfg.Channels, hmc7044.ChannelSpec{
			Num:                        ch.Num,
			Name:                       ch.Name,
			Disable:                    ch.Disable,
			Divider:                    div,
			DriverMode:                 ch.DriverMode,
			DriverImpedance:            ch.DriverImpedance,
			HighPerformanceModeDisable: ch.HighPerformanceModeDisable,
			StartUpModeDynamicEnable:   ch.StartupModeDynamicEnable,
			DynamicDriverEnable:        ch.DynamicDriverEnable,
			OutputControl0RB4Enable:    ch.OutputControl0RB4Enable,
			ForceMuteEnable:            ch.ForceMuteEnable,
			CoarseDelay:                ch.CoarseDelay,
			FineDelay:                  ch.FineDelay,
			OutMuxMode:                 ch.OutMuxMode,
		})
	}
	return cfg, nil
}

func copyBytes(dst, src []uint8, name string) error {
	if len(src) > len(dst) {
		return fmt.Errorf("config: %d %s entries, max %d", len(src), name, len(dst))
	}
	copy(dst, src)
	return nil
}
