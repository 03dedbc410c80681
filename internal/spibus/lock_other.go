//go:build !linux

package spibus

import "os"

// lockFile — заглушка на не-Linux (блокировка не выполняется).
func lockFile(path string) (*os.File, error) {
	_ = path
	return nil, nil
}

func unlockFile(f *os.File) error {
	_ = f
	return nil
}
