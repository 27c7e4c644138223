package remote

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftpmirror/config"
)

func TestIdleConnTimesOutSilentPeer(t *testing.T) {
	local, peer := net.Pipe()
	defer peer.Close()

	conn := withIdleTimeout(local, 50*time.Millisecond)
	defer conn.Close()

	_, err := conn.Read(make([]byte, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrDeadlineExceeded))
}

func TestIdleConnPassesTraffic(t *testing.T) {
	local, peer := net.Pipe()
	defer peer.Close()

	conn := withIdleTimeout(local, time.Second)
	defer conn.Close()

	go peer.Write([]byte("ok"))

	buf := make([]byte, 2)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf[:n]))
}

func TestWithIdleTimeoutDisabled(t *testing.T) {
	local, peer := net.Pipe()
	defer local.Close()
	defer peer.Close()

	assert.Same(t, local, withIdleTimeout(local, 0))
}

// serveSilentMakeDir accepts one FTP session, completes the login and then
// never answers MKD.
func serveSilentMakeDir(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 test server ready")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			verb, _, _ := strings.Cut(line, " ")
			switch strings.ToUpper(verb) {
			case "USER":
				tp.PrintfLine("331 password required")
			case "PASS":
				tp.PrintfLine("230 logged in")
			case "MKD":
			case "QUIT":
				tp.PrintfLine("221 bye")
				return
			default:
				tp.PrintfLine("200 ok")
			}
		}
	}()

	return ln.Addr().String()
}

func TestFTPIdleTimeoutOnStalledServer(t *testing.T) {
	cfg := &config.Config{
		Protocol: config.ProtocolFTP,
		Host:     serveSilentMakeDir(t),
		User:     "deploy",
		Password: "secret",
		Timeout:  200 * time.Millisecond,
	}

	client, err := DialFTP(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Quit()

	assert.Equal(t, "220 test server ready", client.Welcome())

	done := make(chan error, 1)
	go func() { done <- client.MakeDir("/assets") }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.False(t, IsExist(err))
	case <-time.After(5 * time.Second):
		t.Fatal("MakeDir did not give up on a silent server")
	}
}
