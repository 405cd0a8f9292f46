package protocols

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/eshanized/ERPCT/internal/models"
	"github.com/eshanized/ERPCT/pkg/debug"
)

func init() {
	Register("ssh", func(cfg Config) (Tester, error) {
		port := cfg.Port
		if port == 0 {
			port = 22
		}
		return &SSHTester{addr: net.JoinHostPort(cfg.Target, fmt.Sprintf("%d", port))}, nil
	})
}

// SSHTester attempts SSH password authentication. Each call dials a fresh
// connection, so one instance is safe for concurrent use.
type SSHTester struct {
	addr string
}

// Test dials the target and attempts password authentication as username.
func (t *SSHTester) Test(ctx context.Context, username, password string, timeout time.Duration) (models.Outcome, string) {
	config := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	done := make(chan dialResult, 1)
	go func() {
		client, err := ssh.Dial("tcp", t.addr, config)
		done <- dialResult{client, err}
	}()

	select {
	case <-ctx.Done():
		return models.OutcomeConnectionError, "cancelled"
	case res := <-done:
		if res.err == nil {
			res.client.Close()
			debug.Info("SSH authentication succeeded for %s@%s", username, t.addr)
			return models.OutcomeSuccess, "authentication successful"
		}
		return classifySSHError(res.err)
	}
}

func classifySSHError(err error) (models.Outcome, string) {
	msg := err.Error()

	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "no supported methods remain") {
		return models.OutcomeAuthFailure, msg
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.OutcomeTimeout, msg
	}
	if strings.Contains(msg, "i/o timeout") || strings.Contains(msg, "handshake failed: EOF") {
		return models.OutcomeTimeout, msg
	}

	return models.OutcomeConnectionError, msg
}
