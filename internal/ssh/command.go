package ssh

import (
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"
	gossh "golang.org/x/crypto/ssh"
)

type Result struct {
	Stdout string
	Stderr string
	Err    error
	Code   int
	Spent  time.Duration
}

type Option func(*Prober)

func WithPort(port int) Option              { return func(p *Prober) { p.Port = port } }
func WithDialTimeout(d time.Duration) Option { return func(p *Prober) { p.DialTimeout = d } }
func WithCheckCommand(cmd string) Option    { return func(p *Prober) { p.CheckCommand = cmd } }
func WithLogger(l *zap.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.log = l
		}
	}
}
func WithClock(c clock.Clock) Option {
	return func(p *Prober) {
		if c != nil {
			p.clk = c
		}
	}
}
func WithCache(c *StatusCache) Option { return func(p *Prober) { p.cache = c } }
func WithHostKeyCallback(cb gossh.HostKeyCallback) Option {
	return func(p *Prober) {
		if cb != nil {
			p.hostKey = cb
		}
	}
}
func WithDialer(d DialFunc) Option { return func(p *Prober) { p.dial = d } }
