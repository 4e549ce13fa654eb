//nolint:dupl
package ssh

import (
	"context"
	"fmt"
	"io"
	"testing"

	xssh "golang.org/x/crypto/ssh"

	assert "github.com/stretchr/testify/require"
)

// Defines credentials used for test sessions.
const (
	TestUserName = "testUser"
	TestPassword = "testPassword"
)

type sHandler struct{}

func (s *sHandler) Handle(ch xssh.Channel) {
	buffer := make([]byte, 5)
	_, _ = ch.Read(buffer)
	_, _ = ch.Write([]byte(">" + string(buffer) + "<"))
}

func handlerFactory() HandlerFactory {
	return func(svrconn *xssh.ServerConn) Handler {
		return &sHandler{}
	}
}

// testTransport dials target over SSH and opens the "netconf" subsystem,
// giving tests a raw io.ReadWriteCloser onto the server's channel handler
// without depending on any NETCONF-client-level session machinery.
type testTransport struct {
	client  *xssh.Client
	session *xssh.Session
	io.Reader
	io.WriteCloser
}

func dialSubsystem(target string, cfg *xssh.ClientConfig) (*testTransport, error) {
	cli, err := xssh.Dial("tcp", target, cfg)
	if err != nil {
		return nil, err
	}
	sess, err := cli.NewSession()
	if err != nil {
		_ = cli.Close()
		return nil, err
	}
	if err := sess.RequestSubsystem("netconf"); err != nil {
		_ = sess.Close()
		_ = cli.Close()
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = sess.Close()
		_ = cli.Close()
		return nil, err
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()
		_ = cli.Close()
		return nil, err
	}
	return &testTransport{client: cli, session: sess, Reader: stdout, WriteCloser: stdin}, nil
}

func (t *testTransport) Close() error {
	_ = t.WriteCloser.Close()
	_ = t.session.Close()
	return t.client.Close()
}

func TestServer(t *testing.T) {
	sshcfg, err := PasswordConfig(TestUserName, TestPassword)
	assert.NoError(t, err)

	ctx := WithSshTrace(context.Background(), DefaultLoggingHooks)
	server, err := NewServer(ctx, "localhost", 0, sshcfg, handlerFactory())
	assert.NotNil(t, server)
	assert.NoError(t, err)
	defer server.Close()

	//----------------------------

	sshConfig := &xssh.ClientConfig{
		User:            TestUserName,
		Auth:            []xssh.AuthMethod{xssh.Password(TestPassword)},
		HostKeyCallback: xssh.InsecureIgnoreHostKey(),
	}

	target := fmt.Sprintf("localhost:%d", server.Port())
	tr, err := dialSubsystem(target, sshConfig)
	assert.NoError(t, err, "Not expecting new transport to fail")
	defer tr.Close()

	_, _ = tr.Write([]byte("hello"))
	buffer := make([]byte, 7)
	_, _ = tr.Read(buffer)
	assert.Equal(t, ">hello<", string(buffer))
}

func TestServerListenFailure(t *testing.T) {
	sshcfg, err := PasswordConfig(TestUserName, TestPassword)
	assert.NoError(t, err)

	ctx := WithSshTrace(context.Background(), DefaultLoggingHooks)
	server, err := NewServer(ctx, "9.9.9.9", 9999, sshcfg, handlerFactory())
	assert.Nil(t, server)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "assign requested address")
}

func TestServerConnectionFailure(t *testing.T) {
	sshcfg, err := PasswordConfig(TestUserName, TestPassword)
	assert.NoError(t, err)

	ctx := WithSshTrace(context.Background(), DefaultLoggingHooks)
	server, err := NewServer(ctx, "localhost", 0, sshcfg, handlerFactory())
	assert.NotNil(t, server)
	assert.NoError(t, err)
	defer server.Close()

	//----------------------------

	sshConfig := &xssh.ClientConfig{
		User:            TestUserName,
		Auth:            []xssh.AuthMethod{xssh.Password("WrongPassword")},
		HostKeyCallback: xssh.InsecureIgnoreHostKey(),
	}

	target := fmt.Sprintf("localhost:%d", server.Port())
	_, err = dialSubsystem(target, sshConfig)
	assert.Error(t, err, "Not expecting new transport to succeed")
	assert.Contains(t, err.Error(), "authenticate")
}

func TestServerDiagnosticTraceHooks(t *testing.T) {
	sshcfg, err := PasswordConfig(TestUserName, TestPassword)
	assert.NoError(t, err)

	ctx := WithSshTrace(context.Background(), DiagnosticLoggingHooks)
	server, err := NewServer(ctx, "localhost", 0, sshcfg, handlerFactory())
	assert.NotNil(t, server)
	assert.NoError(t, err)
	defer server.Close()

	//----------------------------

	sshConfig := &xssh.ClientConfig{
		User:            TestUserName,
		Auth:            []xssh.AuthMethod{xssh.Password(TestPassword)},
		HostKeyCallback: xssh.InsecureIgnoreHostKey(),
	}

	target := fmt.Sprintf("localhost:%d", server.Port())
	tr, err := dialSubsystem(target, sshConfig)
	assert.NoError(t, err, "Not expecting new transport to fail")
	defer tr.Close()

	_, _ = tr.Write([]byte("hello"))
	buffer := make([]byte, 7)
	_, _ = tr.Read(buffer)
	assert.Equal(t, ">hello<", string(buffer))
}

func TestServerNoOpTraceHooks(t *testing.T) {
	sshcfg, err := PasswordConfig(TestUserName, TestPassword)
	assert.NoError(t, err)

	ctx := context.Background()
	server, err := NewServer(ctx, "localhost", 0, sshcfg, handlerFactory())
	assert.NotNil(t, server)
	assert.NoError(t, err)
	defer server.Close()

	//----------------------------

	sshConfig := &xssh.ClientConfig{
		User:            TestUserName,
		Auth:            []xssh.AuthMethod{xssh.Password(TestPassword)},
		HostKeyCallback: xssh.InsecureIgnoreHostKey(),
	}

	target := fmt.Sprintf("localhost:%d", server.Port())
	tr, err := dialSubsystem(target, sshConfig)
	assert.NoError(t, err, "Not expecting new transport to fail")
	defer tr.Close()

	_, _ = tr.Write([]byte("hello"))
	buffer := make([]byte, 7)
	_, _ = tr.Read(buffer)
	assert.Equal(t, ">hello<", string(buffer))
}
