package daemon

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shiwa/hmc7044/internal/config"
	"golang.org/x/crypto/ssh"
)

func TestSSHServer_HostKeyPersisted(t *testing.T) {
	dev, _ := newTestDevice(t)
	path := filepath.Join(t.TempDir(), "keys", "host_key")
	cfg := config.SSHConfig{User: "admin", Password: "secret", HostKey: path}

	if _, err := NewSSHServer(cfg, NewConsole(dev)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ключ хоста не сохранён: %v", err)
	}
	if _, err := ssh.ParsePrivateKey(data); err != nil {
		t.Fatalf("сохранённый ключ не разбирается: %v", err)
	}
	st, _ := os.Stat(path)
	if st.Mode().Perm() != 0o600 {
		t.Errorf("права ключа %v", st.Mode().Perm())
	}

	if _, err := NewSSHServer(cfg, NewConsole(dev)); err != nil {
		t.Fatal(err)
	}
	again, _ := os.ReadFile(path)
	if !bytes.Equal(data, again) {
		t.Error("существующий ключ не должен перезаписываться")
	}
}

func TestSSHServer_NoPassword(t *testing.T) {
	dev, _ := newTestDevice(t)
	if _, err := NewSSHServer(config.SSHConfig{User: "admin"}, NewConsole(dev)); err == nil {
		t.Error("ожидали ошибку без пароля")
	}
}

func startSSH(t *testing.T) string {
	t.Helper()
	dev, _ := newTestDevice(t)
	cfg := config.SSHConfig{User: "admin", Password: "secret", HostKey: filepath.Join(t.TempDir(), "host_key")}
	srv, err := NewSSHServer(cfg, NewConsole(dev))
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return ln.Addr().String()
}

func clientConfig(password string) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User:            "admin",
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
}

func TestSSHServer_Session(t *testing.T) {
	addr := startSSH(t)
	client, err := ssh.Dial("tcp", addr, clientConfig("secret"))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Shell(); err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(stdin, "rate 2\rexit\r"); err != nil {
		t.Fatal(err)
	}
	out, err := io.ReadAll(stdout)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "ch2 122880000 Hz") {
		t.Errorf("вывод сеанса %q", out)
	}
	if err := sess.Wait(); err != nil {
		t.Errorf("код завершения: %v", err)
	}
}

func TestSSHServer_WrongPassword(t *testing.T) {
	addr := startSSH(t)
	if c, err := ssh.Dial("tcp", addr, clientConfig("wrong")); err == nil {
		c.Close()
		t.Error("ожидали отказ при неверном пароле")
	}
}
