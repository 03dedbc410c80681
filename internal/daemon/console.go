package daemon

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shiwa/hmc7044/internal/config"
	"github.com/shiwa/hmc7044/pkg/hmc7044"
	"golang.org/x/term"
)

// Prompt — приглашение консоли.
const Prompt = "hmc7044# "

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, c *Console, args []string) (string, error)
}

// Console — интерпретатор команд, общий для SSH и последовательного порта.
type Console struct {
	dev      Controller
	commands map[string]command
}

// NewConsole создаёт интерпретатор для устройства dev.
func NewConsole(dev Controller) *Console {
	c := &Console{dev: dev}
	c.commands = map[string]command{
		"help":     {"help", "список команд", cmdHelp},
		"status":   {"status", "состояние PLL и аварии", cmdStatus},
		"plan":     {"plan", "делители PLL1/PLL2", cmdPlan},
		"channels": {"channels", "настроенные каналы и частоты", cmdChannels},
		"rate":     {"rate <ch>", "текущая частота канала", cmdRate},
		"round":    {"round <freq>", "ближайшая достижимая частота", cmdRound},
		"set":      {"set <ch> <freq>", "установить частоту канала", cmdSet},
		"restart":  {"restart", "перезапуск FSM делителей", cmdRestart},
		"pulse":    {"pulse", "запрос генератора импульсов SYSREF", cmdPulse},
		"read":     {"read <reg>", "прочитать регистр", cmdRead},
		"write":    {"write <reg> <val>", "записать регистр", cmdWrite},
		"exit":     {"exit", "завершить сеанс", nil},
	}
	return c
}

// Execute выполняет одну строку. quit == true для exit/logout.
func (c *Console) Execute(ctx context.Context, line string) (out string, quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}
	name := strings.ToLower(fields[0])
	if name == "exit" || name == "logout" || name == "quit" {
		return "", true
	}
	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Sprintf("unknown command %q, try help\n", fields[0]), false
	}
	res, err := cmd.run(ctx, c, fields[1:])
	if err != nil {
		return fmt.Sprintf("error: %v\n", err), false
	}
	return res, false
}

// Serve читает команды из rw до exit или EOF.
func (c *Console) Serve(ctx context.Context, rw io.ReadWriter) error {
	t := term.NewTerminal(rw, Prompt)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := t.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		out, quit := c.Execute(ctx, line)
		if quit {
			return nil
		}
		if out != "" {
			if _, err := t.Write([]byte(out)); err != nil {
				return err
			}
		}
	}
}

func cmdHelp(_ context.Context, c *Console, _ []string) (string, error) {
	names := make([]string, 0, len(c.commands))
	for n := range c.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		cmd := c.commands[n]
		fmt.Fprintf(&b, "  %-20s %s\n", cmd.usage, cmd.help)
	}
	return b.String(), nil
}

func cmdStatus(_ context.Context, c *Console, _ []string) (string, error) {
	s, err := c.dev.Status()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\npll2 %d Hz\n%s\n", c.dev.Variant(), c.dev.PLL2Rate(), s), nil
}

func cmdPlan(_ context.Context, c *Console, _ []string) (string, error) {
	if c.dev.Variant() == hmc7044.HMC7043 {
		return "hmc7043: no pll, parent " + strconv.FormatUint(c.dev.PLL2Rate(), 10) + " Hz\n", nil
	}
	p := c.dev.Plan()
	return fmt.Sprintf("vcxo %d kHz, pll2 %d kHz, lcm %d kHz\n"+
		"pll1: n1=%d r1=%d pfd1=%d kHz lock_detect=%d refs=0x%x prescalers=%v\n"+
		"pll2: n2=%d r2=%d doubler=%t vco=%s\n",
		p.VCXO, p.PLL2, p.LCM,
		p.N1, p.R1, p.PFD1, p.LockDetect, p.RefEnable, p.InPrescaler,
		p.N2, p.R2, p.FreqDoubler, vcoName(p)), nil
}

func vcoName(p hmc7044.Plan) string {
	if p.HighVCO {
		return "high"
	}
	return "low"
}

func cmdChannels(_ context.Context, c *Console, _ []string) (string, error) {
	var b strings.Builder
	for _, ch := range c.dev.Channels() {
		state := "on"
		if ch.Disable {
			state = "off"
		}
		rate, err := c.dev.RecalcRate(ch.Num)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "  ch%-2d %-12s div=%-4d %d Hz %s\n", ch.Num, ch.Name, ch.Divider, rate, state)
	}
	return b.String(), nil
}

func cmdRate(_ context.Context, c *Console, args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage("rate <ch>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return "", err
	}
	rate, err := c.dev.RecalcRate(ch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ch%d %d Hz\n", ch, rate), nil
}

func cmdRound(_ context.Context, c *Console, args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage("round <freq>")
	}
	f, err := config.ParseFrequency(args[0])
	if err != nil {
		return "", err
	}
	rate, err := c.dev.RoundRate(f.Hz())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d Hz\n", rate), nil
}

func cmdSet(_ context.Context, c *Console, args []string) (string, error) {
	if len(args) != 2 {
		return "", errUsage("set <ch> <freq>")
	}
	ch, err := parseChannel(args[0])
	if err != nil {
		return "", err
	}
	f, err := config.ParseFrequency(args[1])
	if err != nil {
		return "", err
	}
	if err := c.dev.SetRate(ch, f.Hz()); err != nil {
		return "", err
	}
	rate, err := c.dev.RecalcRate(ch)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ch%d %d Hz\n", ch, rate), nil
}

func cmdRestart(ctx context.Context, c *Console, _ []string) (string, error) {
	if err := c.dev.Restart(ctx); err != nil {
		return "", err
	}
	return "ok\n", nil
}

func cmdPulse(ctx context.Context, c *Console, _ []string) (string, error) {
	if err := c.dev.RequestPulse(ctx); err != nil {
		return "", err
	}
	return "ok\n", nil
}

func cmdRead(_ context.Context, c *Console, args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage("read <reg>")
	}
	reg, err := parseRegister(args[0])
	if err != nil {
		return "", err
	}
	v, err := c.dev.ReadRegister(reg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0x%03x = 0x%02x\n", reg, v), nil
}

func cmdWrite(_ context.Context, c *Console, args []string) (string, error) {
	if len(args) != 2 {
		return "", errUsage("write <reg> <val>")
	}
	reg, err := parseRegister(args[0])
	if err != nil {
		return "", err
	}
	v, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return "", fmt.Errorf("value %q: %w", args[1], err)
	}
	if err := c.dev.WriteRegister(reg, byte(v)); err != nil {
		return "", err
	}
	return "ok\n", nil
}

func errUsage(usage string) error { return fmt.Errorf("usage: %s", usage) }

func parseChannel(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "ch"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("channel %q: %w", s, err)
	}
	return uint32(n), nil
}

func parseRegister(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 0, 12)
	if err != nil {
		return 0, fmt.Errorf("register %q: %w", s, err)
	}
	return uint16(n), nil
}
