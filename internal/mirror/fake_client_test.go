package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"ftpmirror/internal/remote"
)

// fakeServer is an in-memory remote that records every call in order.
type fakeServer struct {
	dirs     map[string]bool
	files    map[string]string
	calls    []string
	dials    int
	dialErr  error
	mkdirErr map[string]error
	storeErr map[string]error
	quits    int
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		dirs:     map[string]bool{"/": true},
		files:    make(map[string]string),
		mkdirErr: make(map[string]error),
		storeErr: make(map[string]error),
	}
}

func (s *fakeServer) dial(ctx context.Context) (remote.Client, error) {
	s.dials++
	if s.dialErr != nil {
		return nil, s.dialErr
	}
	s.calls = append(s.calls, "connect", "login")
	return &fakeClient{server: s, cwd: "/"}, nil
}

func (s *fakeServer) storedNames() []string {
	var names []string
	for _, call := range s.calls {
		if strings.HasPrefix(call, "store ") {
			names = append(names, strings.TrimPrefix(call, "store "))
		}
	}
	return names
}

type fakeClient struct {
	server *fakeServer
	cwd    string
}

func (c *fakeClient) Welcome() string {
	return "220 fake server ready"
}

func (c *fakeClient) CurrentDir() (string, error) {
	return c.cwd, nil
}

func (c *fakeClient) ChangeDir(dir string) error {
	c.server.calls = append(c.server.calls, "cwd "+dir)
	target := c.abs(dir)
	if !c.server.dirs[target] {
		return fmt.Errorf("550 %s: no such directory", target)
	}
	c.cwd = target
	return nil
}

func (c *fakeClient) MakeDir(dir string) error {
	c.server.calls = append(c.server.calls, "mkdir "+dir)
	target := c.abs(dir)
	if err := c.server.mkdirErr[target]; err != nil {
		return err
	}
	if c.server.dirs[target] {
		return fmt.Errorf("521 %s: %w", target, fs.ErrExist)
	}
	if !c.server.dirs[path.Dir(target)] {
		return errors.New("550 parent missing")
	}
	c.server.dirs[target] = true
	return nil
}

func (c *fakeClient) Store(name string, r io.Reader) error {
	c.server.calls = append(c.server.calls, "store "+name)
	target := c.abs(name)
	if err := c.server.storeErr[target]; err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.server.files[target] = string(data)
	return nil
}

func (c *fakeClient) Quit() error {
	c.server.calls = append(c.server.calls, "quit")
	c.server.quits++
	return nil
}

func (c *fakeClient) abs(p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Join(c.cwd, p)
}
