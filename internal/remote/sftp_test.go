package remote

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSH struct {
	closeErr error
	closed   bool
}

func (s *fakeSSH) ServerVersion() []byte { return []byte("SSH-2.0-test") }

func (s *fakeSSH) Close() error {
	s.closed = true
	return s.closeErr
}

// pipeCloser tears down both directions of the in-memory session, the way
// closing an ssh channel does, and reports closeErr.
type pipeCloser struct {
	*io.PipeWriter
	peer     *io.PipeWriter
	closeErr error
}

func (p *pipeCloser) Close() error {
	p.PipeWriter.Close()
	p.peer.Close()
	return p.closeErr
}

func newPipeSFTP(t *testing.T, closeErr error) (*SFTPClient, *fakeSSH) {
	t.Helper()

	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	server := sftp.NewRequestServer(struct {
		io.Reader
		io.WriteCloser
	}{serverRead, serverWrite}, sftp.InMemHandler())
	go server.Serve()

	client, err := sftp.NewClientPipe(clientRead, &pipeCloser{
		PipeWriter: clientWrite,
		peer:       serverWrite,
		closeErr:   closeErr,
	})
	require.NoError(t, err)

	ssh := &fakeSSH{}
	return &SFTPClient{sftpClient: client, sshClient: ssh, cwd: "/"}, ssh
}

func TestSFTPClient(t *testing.T) {
	client, _ := newPipeSFTP(t, nil)
	defer client.Quit()

	assert.Equal(t, "SSH-2.0-test", client.Welcome())

	require.NoError(t, client.MakeDir("/assets"))
	assert.True(t, IsExist(client.MakeDir("/assets")))

	require.NoError(t, client.ChangeDir("assets"))
	cwd, err := client.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/assets", cwd)

	require.NoError(t, client.Store("app.js", bytes.NewBufferString("console.log(1)")))
	info, err := client.sftpClient.Stat("/assets/app.js")
	require.NoError(t, err)
	assert.Equal(t, int64(14), info.Size())

	assert.Error(t, client.ChangeDir("app.js"))
	assert.Error(t, client.ChangeDir("/missing"))
	cwd, _ = client.CurrentDir()
	assert.Equal(t, "/assets", cwd)
}

func TestSFTPQuitReportsBothCloseErrors(t *testing.T) {
	sessionErr := errors.New("session close failed")
	client, ssh := newPipeSFTP(t, sessionErr)
	ssh.closeErr = errors.New("transport close failed")

	err := client.Quit()

	require.Error(t, err)
	assert.True(t, errors.Is(err, sessionErr))
	assert.True(t, errors.Is(err, ssh.closeErr))
	assert.True(t, ssh.closed)
}
