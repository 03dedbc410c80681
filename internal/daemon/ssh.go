package daemon

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/shiwa/hmc7044/internal/config"
	"github.com/shiwa/hmc7044/internal/logging"
	"golang.org/x/crypto/ssh"
)

// SSHServer — консоль по SSH с парольной аутентификацией.
type SSHServer struct {
	cfg          config.SSHConfig
	console      *Console
	logger       *logging.Logger
	serverConfig *ssh.ServerConfig
}

// NewSSHServer настраивает аутентификацию и ключ хоста (загружает или генерирует).
func NewSSHServer(cfg config.SSHConfig, console *Console) (*SSHServer, error) {
	if cfg.Password == "" {
		return nil, errors.New("ssh: password is not configured")
	}
	s := &SSHServer{
		cfg:     cfg,
		console: console,
		logger:  logging.NewLogger("ssh-server"),
	}
	s.serverConfig = &ssh.ServerConfig{PasswordCallback: s.checkPassword}
	if err := s.configureServerKeys(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SSHServer) checkPassword(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	userOK := subtle.ConstantTimeCompare([]byte(meta.User()), []byte(s.cfg.User)) == 1
	passOK := subtle.ConstantTimeCompare(password, []byte(s.cfg.Password)) == 1
	if userOK && passOK {
		return nil, nil
	}
	s.logger.Warn("ssh auth failed for %q from %s", meta.User(), meta.RemoteAddr())
	return nil, fmt.Errorf("ssh: access denied for %q", meta.User())
}

// configureServerKeys загружает ключ хоста, при неудаче генерирует новый и сохраняет его.
func (s *SSHServer) configureServerKeys() error {
	signer, err := loadSSHKey(s.cfg.HostKey)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("ssh host key %s: %v", s.cfg.HostKey, err)
		}
		signer, err = s.generateNewSSHKey(s.cfg.HostKey)
		if err != nil {
			return err
		}
	}
	s.serverConfig.AddHostKey(signer)
	return nil
}

func loadSSHKey(path string) (ssh.Signer, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return signer, nil
}

func (s *SSHServer) generateNewSSHKey(path string) (ssh.Signer, error) {
	s.logger.Info("generating new ssh host key")
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ssh keygen: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("ssh signer: %w", err)
	}
	if path == "" {
		return signer, nil
	}
	block, err := ssh.MarshalPrivateKey(key, "hmc7044ctl host key")
	if err != nil {
		return nil, fmt.Errorf("ssh key encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		s.logger.Error("ssh key dir %s: %v", path, err)
		return signer, nil
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		s.logger.Error("ssh key write failed: %s: %v", path, err)
		return signer, nil
	}
	s.logger.Info("ssh host key written to %s", path)
	return signer, nil
}

// Serve принимает соединения на ln до отмены ctx.
func (s *SSHServer) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.logger.Info("ssh listening on %s", ln.Addr())
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.processConnection(ctx, conn)
		}()
	}
}

func (s *SSHServer) processConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	sconn, chans, reqs, err := ssh.NewServerConn(conn, s.serverConfig)
	if err != nil {
		s.logger.Debug("ssh handshake %s: %v", conn.RemoteAddr(), err)
		return
	}
	defer sconn.Close()
	s.logger.Info("ssh session %s@%s", sconn.User(), sconn.RemoteAddr())
	go ssh.DiscardRequests(reqs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		sconn.Close()
	}()

	for nc := range chans {
		if nc.ChannelType() != "session" {
			nc.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := nc.Accept()
		if err != nil {
			s.logger.Warn("ssh channel accept: %v", err)
			continue
		}
		go s.runShell(ctx, ch, requests)
	}
}

// runShell отвечает на pty-req/shell и запускает консоль на канале.
func (s *SSHServer) runShell(ctx context.Context, ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()
	shell := make(chan struct{})
	go func() {
		started := false
		for req := range requests {
			ok := req.Type == "pty-req" || req.Type == "window-change" ||
				(req.Type == "shell" && !started)
			if req.WantReply {
				req.Reply(ok, nil)
			}
			if req.Type == "shell" && !started {
				started = true
				close(shell)
			}
		}
	}()
	select {
	case <-shell:
	case <-ctx.Done():
		return
	}
	err := s.console.Serve(ctx, ch)
	status := uint32(0)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("ssh console: %v", err)
		status = 1
	}
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
}
