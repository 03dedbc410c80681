// hmc7044ctl — настройка микросхем распределения тактов HMC7044/HMC7043 по SPI
// и управляющий daemon (HTTP JSON API, консоль по SSH и на последовательном порту).
//
// Использование:
//
//	hmc7044ctl -config hmc7044.yml            — начальная настройка и выход
//	hmc7044ctl -set 2=122.88MHz -status       — настройка, смена частоты канала, состояние
//	hmc7044ctl -run -config hmc7044.yml       — настройка и daemon до SIGINT/SIGTERM
//	hmc7044ctl -dry-run -status               — то же на эмуляторе регистров
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/shiwa/hmc7044/internal/config"
	"github.com/shiwa/hmc7044/internal/daemon"
	"github.com/shiwa/hmc7044/internal/logging"
	"github.com/shiwa/hmc7044/internal/spibus"
	"github.com/shiwa/hmc7044/pkg/clk"
	"github.com/shiwa/hmc7044/pkg/hmc7044"
	"periph.io/x/conn/v3/spi"
)

const defaultConfigPath = "hmc7044.yml"

// rateFlags — повторяемый флаг -set канал=частота.
type rateFlags []string

func (r *rateFlags) String() string     { return strings.Join(*r, ",") }
func (r *rateFlags) Set(v string) error { *r = append(*r, v); return nil }

// options — флаги командной строки.
type options struct {
	configPath string
	configure  bool
	run        bool
	dryRun     bool
	status     bool
	port       string
	level      string
	quiet      bool
	sets       rateFlags
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "путь к YAML конфигу (по умолчанию "+defaultConfigPath+")")
	flag.BoolVar(&o.configure, "configure", false, "выполнить начальную настройку и выйти (по умолчанию)")
	flag.BoolVar(&o.run, "run", false, "после настройки запустить daemon до SIGINT/SIGTERM")
	flag.BoolVar(&o.dryRun, "dry-run", false, "эмулятор регистров вместо SPI")
	flag.BoolVar(&o.status, "status", false, "вывести состояние PLL, план и каналы")
	flag.StringVar(&o.port, "port", "", "порт SPI (переопределяет config)")
	flag.StringVar(&o.level, "log-level", "", "уровень журнала: debug, info, warn, error")
	flag.BoolVar(&o.quiet, "quiet", false, "меньше вывода")
	flag.Var(&o.sets, "set", "частота канала: <номер|имя>=<частота>, можно повторять")
	flag.Parse()

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if o.port != "" {
		cfg.SPI.Port = o.port
	}
	if o.level != "" {
		cfg.Log.Level = o.level
	}
	if o.quiet {
		cfg.Log.Quiet = true
	}
	if err := setupLogging(cfg.Log); err != nil {
		log.Fatalf("log: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := openBus(cfg, o.dryRun)
	if err != nil {
		log.Fatalf("bus: %v", err)
	}
	if err := run(ctx, o, cfg, bus); err != nil {
		stop()
		log.Fatal(err)
	}
}

// run настраивает микросхему на bus и выполняет действия флагов.
// Шина закрывается на любом пути выхода.
func run(ctx context.Context, o options, cfg *config.Config, bus hmc7044.Bus) error {
	devCfg, err := cfg.Device.ToDevice()
	if err != nil {
		closeBus(bus)
		return fmt.Errorf("device config: %w", err)
	}
	dev, err := hmc7044.New(ctx, bus, devCfg)
	if err != nil {
		closeBus(bus)
		return fmt.Errorf("%s setup: %w", devCfg.Variant, err)
	}
	defer dev.Close()

	registry := clk.NewRegistry()
	if err := registry.Register(dev.Clocks()...); err != nil {
		return fmt.Errorf("clocks: %w", err)
	}
	if err := applyRates(dev, registry, o.sets); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	if o.status {
		printStatus(ctx, dev)
	}
	if !cfg.Log.Quiet {
		fmt.Printf("%s настроен: pll2 %d Hz, каналов %d\n", dev.Variant(), dev.PLL2Rate(), len(dev.Channels()))
	}

	if o.run && !o.configure {
		logger := logging.NewLogger("main")
		logger.Info("daemon started")
		if err := daemon.New(cfg, dev).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("shutdown")
	}
	return nil
}

func closeBus(bus hmc7044.Bus) {
	if c, ok := bus.(io.Closer); ok {
		c.Close()
	}
}

func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogging(lc config.LogConfig) error {
	if err := logging.SetLevel(lc.Level); err != nil {
		return err
	}
	logging.SetJSON(lc.JSON)
	logging.SetQuiet(lc.Quiet)
	return nil
}

func openBus(cfg *config.Config, dryRun bool) (hmc7044.Bus, error) {
	if dryRun {
		return hmc7044.NewEmulator(), nil
	}
	dev, err := spibus.Open(spibus.Options{
		Port:      cfg.SPI.Port,
		Speed:     cfg.SPI.Speed.Physic(),
		Mode:      spi.Mode(cfg.SPI.Mode),
		Exclusive: cfg.SPI.Exclusive,
		NoCS:      cfg.SPI.CSGPIO != "",
	})
	if err != nil {
		return nil, err
	}
	if cfg.SPI.CSGPIO == "" {
		return dev, nil
	}
	sel, err := spibus.ChipSelect(cfg.SPI.CSGPIO)
	if err != nil {
		dev.Close()
		return nil, err
	}
	bus, err := hmc7044.NewCSBus(dev, sel)
	if err != nil {
		dev.Close()
		return nil, err
	}
	return bus, nil
}

// applyRates применяет -set: ключ — номер канала или имя дескриптора (clock_N).
func applyRates(dev *hmc7044.Device, registry *clk.Registry, sets []string) error {
	for _, s := range sets {
		key, val, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("%q: expected <channel>=<rate>", s)
		}
		f, err := config.ParseFrequency(val)
		if err != nil {
			return err
		}
		if n, err := strconv.ParseUint(key, 10, 32); err == nil {
			if err := dev.SetRate(uint32(n), f.Hz()); err != nil {
				return err
			}
			continue
		}
		c, err := registry.Get(key)
		if err != nil {
			return err
		}
		if err := c.SetRate(f.Hz()); err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
	}
	return nil
}

func printStatus(ctx context.Context, dev *hmc7044.Device) {
	console := daemon.NewConsole(dev)
	for _, cmd := range []string{"status", "plan", "channels"} {
		out, _ := console.Execute(ctx, cmd)
		fmt.Print(out)
	}
}
