package ssh

import (
	"bytes"
	"context"
	"time"

	gossh "golang.org/x/crypto/ssh"
)

type client struct {
	cli  *gossh.Client
	addr string
}

// Run 执行一条命令；ctx 取消时发送 SIGKILL 并立即返回
func (c *client) Run(ctx context.Context, cmd string) Result {
	start := time.Now()
	s, err := c.cli.NewSession()
	if err != nil {
		return Result{Err: err, Code: -1}
	}
	defer s.Close()

	var out, errb bytes.Buffer
	s.Stdout = &out
	s.Stderr = &errb

	done := make(chan error, 1)
	go func() { done <- s.Run(cmd) }()

	var e error
	select {
	case <-ctx.Done():
		_ = s.Signal(gossh.SIGKILL)
		e = ctx.Err()
	case e = <-done:
	}

	return Result{
		Stdout: out.String(),
		Stderr: errb.String(),
		Err:    e,
		Code:   exitCode(e),
		Spent:  time.Since(start),
	}
}

func (c *client) Close() error {
	return c.cli.Close()
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*gossh.ExitError); ok {
		return ee.ExitStatus()
	}
	return -1
}
