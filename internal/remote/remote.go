// Package remote provides the transfer clients the mirror uploads through.
// Every client keeps a remote working directory that ChangeDir moves and
// Store writes into.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"ftpmirror/config"
)

// Client is one authenticated session with a remote file server.
//
// MakeDir returns an error matching fs.ErrExist when the server reports that
// the directory is already there. Other failures are returned unchanged.
type Client interface {
	Welcome() string
	CurrentDir() (string, error)
	ChangeDir(dir string) error
	MakeDir(dir string) error
	Store(name string, r io.Reader) error
	Quit() error
}

// DialFunc opens and authenticates a Client.
type DialFunc func(ctx context.Context) (Client, error)

// Dial connects and logs in to the target described by cfg.
func Dial(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.Protocol {
	case config.ProtocolFTP:
		return DialFTP(ctx, cfg)
	case config.ProtocolSFTP:
		return DialSFTP(ctx, cfg)
	case config.ProtocolS3:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", cfg.Protocol)
	}
}

// NewDialFunc binds cfg to Dial.
func NewDialFunc(cfg *config.Config) DialFunc {
	return func(ctx context.Context) (Client, error) {
		return Dial(ctx, cfg)
	}
}

type existError struct {
	dir string
	err error
}

func (e *existError) Error() string {
	return fmt.Sprintf("directory %s already exists: %v", e.dir, e.err)
}

func (e *existError) Unwrap() []error { return []error{fs.ErrExist, e.err} }

// IsExist reports whether err says that a directory already exists.
func IsExist(err error) bool {
	return errors.Is(err, fs.ErrExist)
}

func resolve(cwd, p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Join(cwd, p)
}
