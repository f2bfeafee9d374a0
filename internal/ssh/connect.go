// Package ssh 通过 SSH 登录来确认主机与凭据可用。
package ssh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/sync/singleflight"

	"github.com/ahrherrera/mysql-notifier/internal/workflow"
)

const defaultDialTimeout = 10 * time.Second

// Conn 已认证的连接
type Conn interface {
	Run(ctx context.Context, cmd string) Result
	Close() error
}

type DialFunc func(ctx context.Context, addr string, conf *gossh.ClientConfig) (Conn, error)

type Prober struct {
	Port         int
	DialTimeout  time.Duration
	CheckCommand string // 为空则只验证登录

	hostKey gossh.HostKeyCallback
	cache   *StatusCache
	sf      singleflight.Group
	dial    DialFunc
	clk     clock.Clock
	log     *zap.Logger
}

func NewProber(opts ...Option) *Prober {
	p := &Prober{
		Port:        22,
		DialTimeout: defaultDialTimeout,
		hostKey:     gossh.InsecureIgnoreHostKey(),
		dial:        dialTCP,
		clk:         clock.WallClock,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.cache == nil {
		p.cache = NewStatusCache(30*time.Second, p.clk)
	}
	return p
}

// Test force=false 时允许使用缓存状态；同一目标的并发探测合并为一次。
// 合并后的探测不受任何单个调用方取消的影响，只受 DialTimeout 限制；
// 调用方自己的 ctx 结束时立即返回不在线。
func (p *Prober) Test(ctx context.Context, t workflow.Target, force bool) workflow.ProbeResult {
	key := cacheKey(t)
	if !force {
		if r, ok := p.cache.Get(key); ok {
			return r
		}
	}
	shared := context.WithoutCancel(ctx)
	ch := p.sf.DoChan(key, func() (interface{}, error) {
		r := p.probeOnce(shared, t)
		p.cache.Set(key, r)
		return r, nil
	})
	select {
	case res := <-ch:
		return res.Val.(workflow.ProbeResult)
	case <-ctx.Done():
		return workflow.ProbeResult{Online: false, Detail: ctx.Err().Error()}
	}
}

// Purge 清掉过期的探测缓存，返回清理数量
func (p *Prober) Purge() int {
	return p.cache.Purge()
}

func (p *Prober) probeOnce(ctx context.Context, t workflow.Target) workflow.ProbeResult {
	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	addr := net.JoinHostPort(strings.TrimSpace(t.Host), strconv.Itoa(portOrDefault(p.Port)))
	conf := &gossh.ClientConfig{
		User:            t.User,
		Auth:            authMethods(t),
		HostKeyCallback: p.hostKey,
		Timeout:         timeout,
	}

	start := p.clk.Now()
	p.log.Debug("ssh 拨号", zap.String("addr", addr), zap.String("user", t.User))
	conn, err := p.dial(ctx, addr, conf)
	if err != nil {
		p.log.Info("连接失败", zap.String("addr", addr), zap.Bool("timeout", isTimeout(err)), zap.Error(err))
		return workflow.ProbeResult{Online: false, Detail: fmt.Sprintf("dial %s: %v", addr, err)}
	}
	defer conn.Close()

	if p.CheckCommand != "" {
		res := conn.Run(ctx, p.CheckCommand)
		if res.Err != nil {
			p.log.Info("检查命令失败", zap.String("addr", addr), zap.Int("code", res.Code),
				zap.String("stderr", tail(res.Stderr)), zap.Error(res.Err))
			return workflow.ProbeResult{Online: false, Detail: fmt.Sprintf("check command: %v %s", res.Err, tail(res.Stderr))}
		}
	}
	lat := p.clk.Now().Sub(start)
	return workflow.ProbeResult{Online: true, Latency: lat, Detail: "connected to " + addr}
}

// cacheKey 主机忽略大小写；密码只取摘要
func cacheKey(t workflow.Target) string {
	sum := sha256.Sum256([]byte(t.Password))
	return strings.ToLower(strings.TrimSpace(t.Host)) + "|" + t.User + "|" + hex.EncodeToString(sum[:8])
}

func dialTCP(ctx context.Context, addr string, conf *gossh.ClientConfig) (Conn, error) {
	d := net.Dialer{Timeout: conf.Timeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = nc.SetDeadline(dl)
	}
	c, chans, reqs, err := gossh.NewClientConn(nc, addr, conf)
	if err != nil {
		_ = nc.Close()
		return nil, err
	}
	_ = nc.SetDeadline(time.Time{})
	return &client{cli: gossh.NewClient(c, chans, reqs), addr: addr}, nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return err == context.DeadlineExceeded
}

func portOrDefault(p int) int {
	if p == 0 {
		return 22
	}
	return p
}

func tail(s string) string {
	if len(s) > 200 {
		s = s[len(s)-200:]
	}
	return strings.TrimSpace(s)
}
