package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"strings"
	"sync"

	"github.com/jlaffaye/ftp"

	"ftpmirror/config"
)

const (
	defaultFTPPort = "21"

	// Not defined by jlaffaye/ftp; some servers answer MKD with it.
	statusDirectoryExists = 521
)

type FTPClient struct {
	conn    *ftp.ServerConn
	welcome *welcomeTap
}

func DialFTP(ctx context.Context, cfg *config.Config) (*FTPClient, error) {
	addr := withDefaultPort(cfg.Host, defaultFTPPort)
	tap := &welcomeTap{}

	// The dial func also opens the data connections, so transfers get the
	// idle timeout as well.
	options := []ftp.DialOption{
		ftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			return dialIdle(ctx, network, address, cfg.Timeout)
		}),
		ftp.DialWithDisabledEPSV(cfg.DisableEPSV),
		ftp.DialWithDebugOutput(tap),
	}
	if cfg.ExplicitTLS {
		host, _, _ := net.SplitHostPort(addr)
		options = append(options, ftp.DialWithExplicitTLS(&tls.Config{ServerName: host}))
	}

	slog.Debug("Connecting", "protocol", config.ProtocolFTP, "addr", addr, "timeout", cfg.Timeout)
	conn, err := ftp.Dial(addr, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("failed to log in as %s: %w", cfg.User, err)
	}

	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("failed to switch to binary mode: %w", err)
	}

	return &FTPClient{conn: conn, welcome: tap}, nil
}

func (c *FTPClient) Welcome() string {
	return c.welcome.Message()
}

func (c *FTPClient) CurrentDir() (string, error) {
	return c.conn.CurrentDir()
}

func (c *FTPClient) ChangeDir(dir string) error {
	return c.conn.ChangeDir(dir)
}

func (c *FTPClient) MakeDir(dir string) error {
	err := c.conn.MakeDir(dir)
	if err == nil {
		return nil
	}
	if isFTPExist(err) {
		return &existError{dir: dir, err: err}
	}
	return err
}

func (c *FTPClient) Store(name string, r io.Reader) error {
	return c.conn.Stor(name, r)
}

func (c *FTPClient) Quit() error {
	return c.conn.Quit()
}

// isFTPExist only trusts replies that are unambiguous. A 550 may mean the
// directory exists or that permission was denied, so it is not mapped.
func isFTPExist(err error) bool {
	var protoErr *textproto.Error
	if !errors.As(err, &protoErr) {
		return false
	}
	if protoErr.Code == statusDirectoryExists {
		return true
	}
	return protoErr.Code == ftp.StatusFileUnavailable &&
		strings.Contains(strings.ToLower(protoErr.Msg), "exists")
}

func withDefaultPort(host, port string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, port)
}

// welcomeTap receives the control connection transcript and keeps only the
// server greeting, reply codes included. Everything after the greeting,
// including the login commands, is discarded.
type welcomeTap struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	message string
	done    bool
}

func (w *welcomeTap) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return len(p), nil
	}
	w.buf.Write(p)

	data := w.buf.String()
	end := strings.LastIndex(data, "\n")
	if end < 0 {
		return len(p), nil
	}

	// "220-text" opens a multi-line greeting, "220 text" ends it.
	var lines []string
	for _, line := range strings.Split(data[:end], "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case line == "220" || strings.HasPrefix(line, "220 "):
			lines = append(lines, line)
			w.message = strings.Join(lines, "\n")
			w.done = true
			w.buf.Reset()
			return len(p), nil
		case strings.HasPrefix(line, "220-"), len(lines) > 0:
			lines = append(lines, line)
		}
	}
	return len(p), nil
}

func (w *welcomeTap) Message() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.message
}
