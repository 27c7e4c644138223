package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrNoTerminal = errors.New("password not configured and stdin is not a terminal")

// PromptPassword asks for the login password on the terminal without echoing
// it. It fails when in is not a terminal, so unattended runs never block.
func (c *Config) PromptPassword(in *os.File, out io.Writer) error {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return ErrNoTerminal
	}

	fmt.Fprintf(out, "Password for %s@%s: ", c.User, c.Host)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	c.Password = strings.TrimRight(string(password), "\r\n")
	return nil
}
