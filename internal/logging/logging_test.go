package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger_SameName(t *testing.T) {
	a := NewLogger("spi")
	b := NewLogger("spi")
	if a != b {
		t.Error("NewLogger с тем же именем должен возвращать тот же логгер")
	}
	if a.Name() != "spi" {
		t.Errorf("Name() = %q, ожидали spi", a.Name())
	}
}

func TestLogger_ModuleFieldAndQuiet(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	if err := SetLevel("info"); err != nil {
		t.Fatal(err)
	}
	l := NewLogger("hmc7044-test")
	l.Info("pll2=%d", 2949120)
	out := buf.String()
	if !strings.Contains(out, "module=hmc7044-test") || !strings.Contains(out, "pll2=2949120") {
		t.Errorf("нет поля module или сообщения: %q", out)
	}

	buf.Reset()
	SetQuiet(true)
	l.Info("hidden")
	l.Error("visible")
	out = buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info в режиме Quiet не должен выводиться: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("Error должен выводиться всегда: %q", out)
	}
	_ = SetLevel("info")
}

func TestSetLevel_Invalid(t *testing.T) {
	if err := SetLevel("loud"); err == nil {
		t.Error("ожидали ошибку для неизвестного уровня")
	}
}

func TestLogger_Nil(t *testing.T) {
	var l *Logger
	l.Info("x")
	l.Error("x")
}
