//go:build linux

package spibus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLockFile_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spidev0.0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	first, err := lockFile(path)
	if err != nil {
		t.Fatalf("первая блокировка: %v", err)
	}
	if _, err := lockFile(path); !errors.Is(err, ErrBusy) {
		t.Errorf("вторая блокировка: ожидали ErrBusy, получили %v", err)
	}
	if err := unlockFile(first); err != nil {
		t.Fatal(err)
	}
	again, err := lockFile(path)
	if err != nil {
		t.Fatalf("после снятия блокировка должна браться: %v", err)
	}
	unlockFile(again)
}

func TestLockFile_Missing(t *testing.T) {
	if _, err := lockFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("ожидали ошибку для отсутствующего узла")
	}
}
