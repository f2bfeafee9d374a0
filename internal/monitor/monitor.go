// Package monitor 按每台机器的自动测试间隔定时探测并回写在线状态。
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ahrherrera/mysql-notifier/internal/logging"
	"github.com/ahrherrera/mysql-notifier/internal/models"
	"github.com/ahrherrera/mysql-notifier/internal/workflow"
)

type Store interface {
	List() ([]models.Machine, error)
	Get(id uint) (*models.Machine, error)
	UpdateStatus(id uint, online bool, at time.Time) error
}

type Prober interface {
	workflow.Probe
	ProbeBatch(ctx context.Context, targets []workflow.Target, workers int, force bool) []workflow.ProbeResult
}

// Opener 解密失败时返回空串（由实现记日志）
type Opener interface {
	MustOpen(cipherB64 string) string
}

type Options struct {
	Workers int
	Timeout time.Duration // 单次定时探测的上限
	Clock   clock.Clock
	Logger  *zap.Logger
}

// Status 一次探测的结果
type Status struct {
	ID       uint      `json:"id"`
	Host     string    `json:"host"`
	Online   bool      `json:"online"`
	Detail   string    `json:"detail,omitempty"`
	TestedAt time.Time `json:"tested_at"`
}

type scheduled struct {
	entry cron.EntryID
	spec  string
}

type Monitor struct {
	store Store
	probe Prober
	box   Opener
	opts  Options
	log   *zap.Logger

	cron *cron.Cron

	mu   sync.Mutex
	jobs map[uint]scheduled
}

func New(store Store, probe Prober, box Opener, opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	opts.Logger = logging.OrNop(opts.Logger)
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	cl := cronLogger{l: opts.Logger}
	return &Monitor{
		store: store,
		probe: probe,
		box:   box,
		opts:  opts,
		log:   opts.Logger,
		cron:  cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		jobs:  make(map[uint]scheduled),
	}
}

func (m *Monitor) Start() error {
	if err := m.Refresh(); err != nil {
		return err
	}
	m.cron.Start()
	m.log.Info("自动测试已启动", zap.Int("jobs", m.JobCount()))
	return nil
}

// Stop 等待正在执行的探测结束或 ctx 到期
func (m *Monitor) Stop(ctx context.Context) {
	done := m.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// ============ 计划 ============

// Refresh 按数据库中的机器重建计划：新增 / 间隔变化 / 删除
func (m *Monitor) Refresh() error {
	ms, err := m.store.List()
	if err != nil {
		return errors.Annotate(err, "list machines")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uint]bool, len(ms))
	for i := range ms {
		mc := ms[i]
		seen[mc.ID] = true
		spec := scheduleSpec(mc.AutoTestInterval())
		cur, ok := m.jobs[mc.ID]
		if ok && cur.spec == spec {
			continue
		}
		if ok {
			m.cron.Remove(cur.entry)
			delete(m.jobs, mc.ID)
		}
		if spec == "" {
			continue
		}
		id := mc.ID
		eid, err := m.cron.AddFunc(spec, func() { m.runScheduled(id) })
		if err != nil {
			m.log.Warn("添加自动测试失败", zap.Uint("id", id), zap.String("spec", spec), zap.Error(err))
			continue
		}
		m.jobs[id] = scheduled{entry: eid, spec: spec}
	}
	for id, s := range m.jobs {
		if !seen[id] {
			m.cron.Remove(s.entry)
			delete(m.jobs, id)
		}
	}
	return nil
}

func (m *Monitor) JobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Spec 返回机器当前的调度表达式，未调度返回空串
func (m *Monitor) Spec(id uint) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id].spec
}

// scheduleSpec cron 精度为秒，不足 1s 的间隔按 1s
func scheduleSpec(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d < time.Second {
		d = time.Second
	}
	return fmt.Sprintf("@every %s", d.Truncate(time.Second))
}

// ============ 探测 ============

func (m *Monitor) runScheduled(id uint) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
	defer cancel()
	if _, err := m.check(ctx, id, false); err != nil {
		m.log.Warn("自动测试失败", zap.Uint("id", id), zap.Error(err))
	}
}

// CheckOne 手动检查，总是重新探测
func (m *Monitor) CheckOne(ctx context.Context, id uint) (Status, error) {
	return m.check(ctx, id, true)
}

// check force=false 时允许用探测缓存（定时任务）
func (m *Monitor) check(ctx context.Context, id uint, force bool) (Status, error) {
	mc, err := m.store.Get(id)
	if err != nil {
		return Status{}, errors.Trace(err)
	}
	r := m.probe.Test(ctx, m.target(mc), force)
	return m.record(mc, r)
}

// CheckAll 立即探测全部机器，结果顺序与列表一致
func (m *Monitor) CheckAll(ctx context.Context) ([]Status, error) {
	ms, err := m.store.List()
	if err != nil {
		return nil, errors.Annotate(err, "list machines")
	}
	targets := make([]workflow.Target, len(ms))
	for i := range ms {
		targets[i] = m.target(&ms[i])
	}
	rs := m.probe.ProbeBatch(ctx, targets, m.opts.Workers, true)

	out := make([]Status, 0, len(ms))
	for i := range ms {
		st, err := m.record(&ms[i], rs[i])
		if err != nil {
			m.log.Warn("写入状态失败", zap.Uint("id", ms[i].ID), zap.Error(err))
		}
		out = append(out, st)
	}
	return out, nil
}

func (m *Monitor) target(mc *models.Machine) workflow.Target {
	pass := mc.Password
	if m.box != nil {
		pass = m.box.MustOpen(mc.Password)
	}
	return workflow.Target{Host: mc.Host, User: mc.User, Password: pass}
}

func (m *Monitor) record(mc *models.Machine, r workflow.ProbeResult) (Status, error) {
	now := m.opts.Clock.Now()
	st := Status{ID: mc.ID, Host: mc.Host, Online: r.Online, Detail: r.Detail, TestedAt: now}
	if mc.Online != r.Online {
		m.log.Info("在线状态变化", zap.Uint("id", mc.ID), zap.String("host", mc.Host), zap.Bool("online", r.Online))
	}
	return st, errors.Trace(m.store.UpdateStatus(mc.ID, r.Online, now))
}

// cronLogger 把 cron 的日志接到 zap
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug(msg, zap.Any("kv", kv))
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error(msg, zap.Error(err), zap.Any("kv", kv))
}
