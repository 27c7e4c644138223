package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"ftpmirror/config"
)

const defaultSFTPPort = "22"

// sshConn is the part of *ssh.Client kept after the sftp session starts.
type sshConn interface {
	ServerVersion() []byte
	Close() error
}

// SFTPClient tracks the working directory itself because the protocol has
// no notion of one.
type SFTPClient struct {
	sftpClient *sftp.Client
	sshClient  sshConn
	cwd        string
}

func DialSFTP(ctx context.Context, cfg *config.Config) (*SFTPClient, error) {
	sshConfig, err := sshClientConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := withDefaultPort(cfg.Host, defaultSFTPPort)
	slog.Debug("Connecting", "protocol", config.ProtocolSFTP, "addr", addr, "timeout", cfg.Timeout)

	netConn, err := dialIdle(ctx, "tcp", addr, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	conn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshConfig)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("failed to log in as %s: %w", cfg.User, err)
	}
	sshClient := ssh.NewClient(conn, chans, reqs)

	sftpConn, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to start sftp session: %w", err)
	}

	cwd, err := sftpConn.Getwd()
	if err != nil {
		sftpConn.Close()
		sshClient.Close()
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	return &SFTPClient{
		sftpClient: sftpConn,
		sshClient:  sshClient,
		cwd:        cwd,
	}, nil
}

func sshClientConfig(cfg *config.Config) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		key, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("failed to parse key file %s: %w", cfg.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if cfg.KnownHosts != "" {
		callback, err := knownhosts.New(cfg.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKeyCallback = callback
	} else {
		slog.Warn("SFTP_KNOWN_HOSTS not set, host key is not verified")
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.Timeout,
	}, nil
}

func (c *SFTPClient) Welcome() string {
	return string(c.sshClient.ServerVersion())
}

func (c *SFTPClient) CurrentDir() (string, error) {
	return c.cwd, nil
}

func (c *SFTPClient) ChangeDir(dir string) error {
	target := resolve(c.cwd, dir)
	info, err := c.sftpClient.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", target)
	}
	c.cwd = target
	return nil
}

func (c *SFTPClient) MakeDir(dir string) error {
	target := resolve(c.cwd, dir)
	err := c.sftpClient.Mkdir(target)
	if err == nil {
		return nil
	}
	// Servers answer with a generic failure, so look for the directory.
	if info, statErr := c.sftpClient.Stat(target); statErr == nil && info.IsDir() {
		return &existError{dir: target, err: err}
	}
	return err
}

func (c *SFTPClient) Store(name string, r io.Reader) error {
	f, err := c.sftpClient.Create(resolve(c.cwd, name))
	if err != nil {
		return err
	}
	if _, err := f.ReadFrom(r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *SFTPClient) Quit() error {
	return errors.Join(c.sftpClient.Close(), c.sshClient.Close())
}
