// Package workflow 连接测试与提交两个动作。
//
// 两个动作都先看提交开关（校验通过且三项均非空），不满足直接拒绝、无副作用。
// 探测只有在线 / 不在线两种结果；所有失败都以 Outcome 返回，不抛错。
package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/ahrherrera/mysql-notifier/internal/logging"
	"github.com/ahrherrera/mysql-notifier/internal/models"
	"github.com/ahrherrera/mysql-notifier/internal/notice"
	"github.com/ahrherrera/mysql-notifier/internal/validation"
)

type Target struct {
	Host     string
	User     string
	Password string
}

type ProbeResult struct {
	Online  bool
	Latency time.Duration
	Detail  string
}

// Probe 外部连接探测；force 为 true 时不得使用缓存状态
type Probe interface {
	Test(ctx context.Context, t Target, force bool) ProbeResult
}

type Registry interface {
	validation.Registry
	FindByHostName(name string) (*models.Machine, bool)
	// Overwrite 用 replacement 的凭据覆盖 existing，返回覆盖后的记录
	Overwrite(existing *models.Machine, replacement models.Machine) (models.Machine, error)
}

type Sealer interface {
	Seal(plain string) (string, error)
}

type Kind string

const (
	Success   Kind = "success"
	Failure   Kind = "failure"
	Committed Kind = "committed"
	Aborted   Kind = "aborted"
)

type Reason string

const (
	NoReason         Reason = ""
	Refused          Reason = "refused"
	ProbeFailure     Reason = "probe_failure"
	SealFailure      Reason = "seal_failure"
	OverwriteFailure Reason = "overwrite_failure"
)

type Outcome struct {
	Kind        Kind            `json:"kind"`
	Reason      Reason          `json:"reason,omitempty"`
	Entry       *models.Machine `json:"entry,omitempty"`
	Overwritten bool            `json:"overwritten,omitempty"`
	Detail      string          `json:"detail,omitempty"`
}

func failure(r Reason, detail string) Outcome { return Outcome{Kind: Failure, Reason: r, Detail: detail} }

// Draft 当前输入快照
type Draft struct {
	Fields        validation.Fields
	Result        validation.Result
	IntervalValue uint
	IntervalUnit  models.IntervalUnit
}

func (d Draft) valid() bool { return validation.CommitEnabled(d.Fields, d.Result) }

func (d Draft) target() Target {
	return Target{
		Host:     strings.TrimSpace(d.Fields.Host),
		User:     strings.TrimSpace(d.Fields.User),
		Password: d.Fields.Password,
	}
}

type Deps struct {
	Registry Registry
	Probe    Probe
	Notifier notice.Notifier
	Sealer   Sealer
	Clock    clock.Clock
	Logger   *zap.Logger
}

type Workflow struct {
	deps Deps
	// 编辑模式在构造时确定，之后不变
	editMode bool
	editing  *models.Machine
	// 最近一次已知的在线状态；编辑模式下初始值来自被编辑的记录
	online bool
}

// New editing 为 nil 表示新增模式
func New(deps Deps, editing *models.Machine) *Workflow {
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	deps.Logger = logging.OrNop(deps.Logger)
	if deps.Notifier == nil {
		deps.Notifier = notice.Log{L: deps.Logger}
	}
	w := &Workflow{deps: deps}
	if Editable(editing) {
		cp := *editing
		w.editMode = true
		w.editing = &cp
		w.online = cp.Online
	}
	return w
}

// Editable 本机记录或空主机名不算编辑，按新增处理
func Editable(m *models.Machine) bool {
	if m == nil {
		return false
	}
	host := strings.TrimSpace(m.Host)
	return host != "" && !validation.IsLocalHost(host)
}

func (w *Workflow) EditMode() bool { return w.editMode }
func (w *Workflow) Online() bool   { return w.online }

// Test 无论之前状态如何都重新探测
func (w *Workflow) Test(ctx context.Context, d Draft) Outcome {
	if !d.valid() {
		return failure(Refused, "entries are not valid")
	}
	r := w.probe(ctx, d.target())
	if !r.Online {
		return failure(ProbeFailure, r.Detail)
	}
	w.deps.Notifier.Notify(notice.Info, "Connection successful",
		"The connection to "+d.target().Host+" was established with the given credentials.")
	return Outcome{Kind: Success, Detail: r.Detail}
}

// Commit 编辑模式信任已知在线状态，除非 forceTest；新增模式总是重测
func (w *Workflow) Commit(ctx context.Context, d Draft, forceTest bool) Outcome {
	if !d.valid() {
		return failure(Refused, "entries are not valid")
	}
	entry, err := w.candidate(d)
	if err != nil {
		w.deps.Logger.Warn("密码加密失败", zap.Error(err))
		return failure(SealFailure, err.Error())
	}

	online := w.online
	detail := ""
	if !w.editMode || forceTest {
		r := w.probe(ctx, d.target())
		online, detail = r.Online, r.Detail
		now := w.deps.Clock.Now()
		entry.LastTestedAt = &now
	}

	overwritten := false
	if !online && !w.editMode {
		existing, ok := w.deps.Registry.FindByHostName(entry.Host)
		if ok {
			choice := w.deps.Notifier.Notify(notice.Warning, "Machine already exists",
				"A machine named \""+entry.Host+"\" is already registered. Overwrite it with the new credentials?")
			if choice != notice.Yes {
				w.deps.Logger.Info("取消覆盖", zap.String("host", entry.Host))
				return Outcome{Kind: Aborted}
			}
			replaced, err := w.deps.Registry.Overwrite(existing, entry)
			if err != nil {
				w.deps.Logger.Warn("覆盖已有机器失败", zap.String("host", entry.Host), zap.Error(err))
				return failure(OverwriteFailure, err.Error())
			}
			entry = replaced
			online = replaced.Online
			overwritten = true
		}
	}

	if !online {
		return Outcome{Kind: Failure, Reason: ProbeFailure, Detail: detail, Overwritten: overwritten}
	}
	entry.Online = true
	w.deps.Logger.Info("凭据已确认", zap.String("host", entry.Host), zap.Bool("edit", w.editMode))
	return Outcome{Kind: Committed, Entry: &entry, Overwritten: overwritten, Detail: detail}
}

func (w *Workflow) probe(ctx context.Context, t Target) ProbeResult {
	r := w.deps.Probe.Test(ctx, t, true)
	w.online = r.Online
	w.deps.Logger.Debug("连接测试",
		zap.String("host", t.Host), zap.String("user", t.User),
		zap.Bool("online", r.Online), zap.Duration("latency", r.Latency))
	return r
}

// candidate 由输入生成待写入的记录；编辑模式在原记录上修改
func (w *Workflow) candidate(d Draft) (models.Machine, error) {
	var m models.Machine
	if w.editMode {
		m = *w.editing
	}
	sealed, err := w.deps.Sealer.Seal(d.Fields.Password)
	if err != nil {
		return models.Machine{}, err
	}
	m.Host = strings.TrimSpace(d.Fields.Host)
	m.User = strings.TrimSpace(d.Fields.User)
	m.Password = sealed
	m.AutoTestIntervalValue = d.IntervalValue
	m.AutoTestIntervalUnit = d.IntervalUnit
	m.Normalize()
	return m, nil
}
