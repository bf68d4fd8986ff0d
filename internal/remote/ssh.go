package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/sshca"
)

// maxLine bounds a single output line. Output after an overlong line is
// discarded.
const maxLine = 1 << 20

// outputTail is how much combined output a CommandError carries.
const outputTail = 4096

// SSHConfig configures SSHExecutor.
type SSHConfig struct {
	ConnectTimeout time.Duration
	// KnownHostsPath enables host key verification when set.
	KnownHostsPath string
	// FallbackKey is used for servers that carry no private key.
	FallbackKey []byte
	// CA, when set, adds an ephemeral certificate to the auth methods.
	CA      *sshca.CA
	CertTTL time.Duration
}

// SSHExecutor connects to hosts over SSH.
type SSHExecutor struct {
	cfg         SSHConfig
	hostKeys    ssh.HostKeyCallback
	fallback    ssh.Signer
	logger      zerolog.Logger
	dialContext func(ctx context.Context, network, addr string) (net.Conn, error)
}

var _ Executor = (*SSHExecutor)(nil)

func NewSSHExecutor(cfg SSHConfig, logger zerolog.Logger) (*SSHExecutor, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.CertTTL <= 0 {
		cfg.CertTTL = 10 * time.Minute
	}

	e := &SSHExecutor{
		cfg:    cfg,
		logger: logger.With().Str("component", "remote").Logger(),
	}
	e.dialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext

	if cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		e.hostKeys = cb
	} else {
		e.hostKeys = ssh.InsecureIgnoreHostKey()
	}

	if len(cfg.FallbackKey) > 0 {
		signer, err := ssh.ParsePrivateKey(cfg.FallbackKey)
		if err != nil {
			return nil, fmt.Errorf("parse fallback ssh key: %w", err)
		}
		e.fallback = signer
	}
	return e, nil
}

// LoadKeyFile reads a PEM private key, returning nil for an empty path.
func LoadKeyFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", path, err)
	}
	return b, nil
}

func (e *SSHExecutor) authMethods(d model.SSHDetails) ([]ssh.AuthMethod, error) {
	var signers []ssh.Signer
	if d.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(d.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("parse private key for server %s: %w", d.ServerID, err)
		}
		signers = append(signers, signer)
	} else if e.fallback != nil {
		signers = append(signers, e.fallback)
	}
	if e.cfg.CA != nil {
		cert, err := e.cfg.CA.Sign(d.Username, e.cfg.CertTTL)
		if err != nil {
			return nil, err
		}
		signers = append(signers, cert)
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("no ssh credentials for server %s", d.ServerID)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signers...)}, nil
}

func (e *SSHExecutor) Connect(ctx context.Context, d model.SSHDetails) (Conn, error) {
	port := d.Port
	if port == 0 {
		port = 22
	}
	user := d.Username
	if user == "" {
		user = "root"
	}
	d.Username = user
	addr := net.JoinHostPort(d.Host, strconv.Itoa(port))

	auth, err := e.authMethods(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.ConnectTimeout)
	defer cancel()
	tcpConn, err := e.dialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnection, addr, err)
	}

	// Bound the handshake; ssh.ClientConfig.Timeout only covers the dial.
	_ = tcpConn.SetDeadline(time.Now().Add(e.cfg.ConnectTimeout))
	clientConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: e.hostKeys,
		Timeout:         e.cfg.ConnectTimeout,
	})
	if err != nil {
		tcpConn.Close()
		return nil, fmt.Errorf("%w: handshake %s: %w", ErrConnection, addr, err)
	}
	_ = tcpConn.SetDeadline(time.Time{})

	e.logger.Debug().Str("server_id", d.ServerID).Str("addr", addr).Msg("ssh connected")
	return &sshConn{
		client: ssh.NewClient(clientConn, chans, reqs),
		addr:   addr,
		logger: e.logger,
	}, nil
}

type sshConn struct {
	client    *ssh.Client
	addr      string
	logger    zerolog.Logger
	closeOnce sync.Once
	closeErr  error
}

func (c *sshConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.client.Close()
		c.logger.Debug().Str("addr", c.addr).Msg("ssh connection closed")
	})
	return c.closeErr
}

// Run streams output while the command runs. ctx is only checked before the
// command starts; a started command runs to completion.
func (c *sshConn) Run(ctx context.Context, cmd string, streams Streams) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("%w: open session on %s: %w", ErrConnection, c.addr, err)
	}
	defer session.Close()

	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stdout: %w", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stderr: %w", err)
	}

	if err := session.Start(cmd); err != nil {
		return nil, fmt.Errorf("%w: start command on %s: %w", ErrConnection, c.addr, err)
	}

	var (
		mu       sync.Mutex
		out, eb  strings.Builder
		combined tail
		wg       sync.WaitGroup
	)
	consume := func(r io.Reader, buf *strings.Builder, fn func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			buf.WriteString(line)
			buf.WriteByte('\n')
			combined.add(line)
			if fn != nil {
				fn(line)
			}
			mu.Unlock()
		}
		_, _ = io.Copy(io.Discard, r)
	}
	var copyErr error
	wg.Add(2)
	if streams.StdoutWriter != nil {
		go func() {
			defer wg.Done()
			if _, err := io.Copy(streams.StdoutWriter, stdout); err != nil {
				copyErr = err
				_, _ = io.Copy(io.Discard, stdout)
			}
		}()
	} else {
		go consume(stdout, &out, streams.Stdout)
	}
	go consume(stderr, &eb, streams.Stderr)
	wg.Wait()

	res := &Result{Stdout: out.String(), Stderr: eb.String()}
	err = session.Wait()
	if err == nil {
		if copyErr != nil {
			return res, fmt.Errorf("write command output: %w", copyErr)
		}
		return res, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, &CommandError{Command: cmd, ExitCode: res.ExitCode, Output: combined.String()}
	}
	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) {
		res.ExitCode = -1
		return res, &CommandError{Command: cmd, ExitCode: -1, Output: combined.String()}
	}
	return res, fmt.Errorf("%w: wait for command on %s: %w", ErrConnection, c.addr, err)
}

// tail keeps the last outputTail bytes of output lines.
type tail struct {
	lines []string
	size  int
}

func (t *tail) add(line string) {
	t.lines = append(t.lines, line)
	t.size += len(line) + 1
	for t.size > outputTail && len(t.lines) > 1 {
		t.size -= len(t.lines[0]) + 1
		t.lines = t.lines[1:]
	}
}

func (t *tail) String() string {
	return strings.Join(t.lines, "\n")
}
