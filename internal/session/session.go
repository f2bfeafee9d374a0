// Package session 一次"添加 / 编辑机器"交互的调用方入口。
//
// 输入事件先进防抖，静默窗口过后（或离开输入框时）才重新校验；
// 提交开关每次查询都从当前输入和结果推导。测试 / 提交期间开关关闭。
package session

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/ahrherrera/mysql-notifier/internal/debounce"
	"github.com/ahrherrera/mysql-notifier/internal/logging"
	"github.com/ahrherrera/mysql-notifier/internal/models"
	"github.com/ahrherrera/mysql-notifier/internal/notice"
	"github.com/ahrherrera/mysql-notifier/internal/validation"
	"github.com/ahrherrera/mysql-notifier/internal/workflow"
)

const DefaultQuietWindow = 400 * time.Millisecond

type Config struct {
	QuietWindow   time.Duration
	RepeatNotices bool
}

type Deps struct {
	Registry workflow.Registry
	Probe    workflow.Probe
	Notifier notice.Notifier
	Sealer   workflow.Sealer
	Clock    clock.Clock
	Logger   *zap.Logger
}

// Editing 编辑模式下被编辑的记录与其明文密码
type Editing struct {
	Machine  models.Machine
	Password string
}

type Session struct {
	mu sync.Mutex

	fields        validation.Fields
	intervalValue uint
	intervalUnit  models.IntervalUnit
	editing       *models.Machine

	engine *validation.Engine
	sched  *debounce.Scheduler
	flow   *workflow.Workflow
	result validation.Result
	busy   bool
}

// New editing 为 nil 时是新增模式
func New(cfg Config, deps Deps, editing *Editing) *Session {
	if cfg.QuietWindow <= 0 {
		cfg.QuietWindow = DefaultQuietWindow
	}
	deps.Logger = logging.OrNop(deps.Logger)
	s := &Session{intervalUnit: models.UnitSeconds}

	if editing != nil {
		m := editing.Machine
		// 本机或无主机名的记录不回填主机名，按新增处理（提交时总要重新测试）
		if workflow.Editable(&m) {
			s.editing = &m
			s.fields.Host = m.Host
		}
		s.fields.User = m.User
		s.fields.Password = editing.Password
		s.intervalValue = m.AutoTestIntervalValue
		if m.AutoTestIntervalUnit != "" {
			s.intervalUnit = m.AutoTestIntervalUnit
		}
	}

	s.engine = validation.NewEngine(deps.Registry, deps.Notifier, cfg.RepeatNotices)
	s.sched = debounce.New(deps.Clock, cfg.QuietWindow, s.revalidateLocked)
	s.flow = workflow.New(workflow.Deps{
		Registry: deps.Registry,
		Probe:    deps.Probe,
		Notifier: deps.Notifier,
		Sealer:   deps.Sealer,
		Clock:    deps.Clock,
		Logger:   deps.Logger,
	}, s.editing)
	// 初始结果不弹提示
	s.result = validation.Validate(s.input(), deps.Registry)
	return s
}

func (s *Session) input() validation.Input {
	in := validation.Input{Host: s.fields.Host, User: s.fields.User}
	if s.editing != nil {
		in.EditMode = true
		in.EditingHost = s.editing.Host
	}
	return in
}

// 只在持有 s.mu 时由防抖器回调
func (s *Session) revalidateLocked() {
	s.result = s.engine.Run(s.input())
}

// ============ 输入事件 ============

func (s *Session) OnHostTextChanged(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields.Host = text
	s.sched.Touch()
}

func (s *Session) OnUserTextChanged(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields.User = text
	s.sched.Touch()
}

func (s *Session) OnPasswordChanged(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields.Password = text
	s.sched.Touch()
}

// OnIntervalChanged 间隔不参与校验
func (s *Session) OnIntervalChanged(value uint, unit models.IntervalUnit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervalValue = value
	s.intervalUnit = unit
}

// OnFieldLeft 强制校验；没有待处理的输入时什么也不做
func (s *Session) OnFieldLeft() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Flush()
}

// Poll 静默窗口已过则校验，返回是否执行了校验
func (s *Session) Poll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Poll()
}

// ============ 查询 ============

func (s *Session) CurrentValidation() validation.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Poll()
	return s.result
}

func (s *Session) IsCommitEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Poll()
	return s.commitEnabledLocked()
}

func (s *Session) commitEnabledLocked() bool {
	if s.busy || s.sched.Pending() {
		return false
	}
	return validation.CommitEnabled(s.fields, s.result)
}

type Snapshot struct {
	Host          string              `json:"host"`
	User          string              `json:"user"`
	PasswordSet   bool                `json:"password_set"`
	IntervalValue uint                `json:"auto_test_interval_value"`
	IntervalUnit  models.IntervalUnit `json:"auto_test_interval_unit"`
	EditMode      bool                `json:"edit_mode"`
	EditingID     uint                `json:"editing_id,omitempty"`
	Validation    validation.Result   `json:"validation"`
	CommitEnabled bool                `json:"commit_enabled"`
	Pending       bool                `json:"pending"`
	Busy          bool                `json:"busy"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sched.Poll()
	snap := Snapshot{
		Host:          s.fields.Host,
		User:          s.fields.User,
		PasswordSet:   s.fields.Password != "",
		IntervalValue: s.intervalValue,
		IntervalUnit:  s.intervalUnit,
		EditMode:      s.editing != nil,
		Validation:    s.result,
		CommitEnabled: s.commitEnabledLocked(),
		Pending:       s.sched.Pending(),
		Busy:          s.busy,
	}
	if s.editing != nil {
		snap.EditingID = s.editing.ID
	}
	return snap
}

func (s *Session) EditMode() bool { return s.editing != nil }

// ============ 动作 ============

func (s *Session) RequestTest(ctx context.Context) workflow.Outcome {
	d, ok := s.begin()
	if !ok {
		return workflow.Outcome{Kind: workflow.Failure, Reason: workflow.Refused, Detail: "busy"}
	}
	defer s.end()
	return s.flow.Test(ctx, d)
}

func (s *Session) RequestCommit(ctx context.Context, forceTest bool) workflow.Outcome {
	d, ok := s.begin()
	if !ok {
		return workflow.Outcome{Kind: workflow.Failure, Reason: workflow.Refused, Detail: "busy"}
	}
	defer s.end()
	return s.flow.Commit(ctx, d, forceTest)
}

// begin 点按钮等同于离开输入框：先把待处理的校验做完，再关闭开关
func (s *Session) begin() (workflow.Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return workflow.Draft{}, false
	}
	s.sched.Flush()
	s.busy = true
	return workflow.Draft{
		Fields:        s.fields,
		Result:        s.result,
		IntervalValue: s.intervalValue,
		IntervalUnit:  s.intervalUnit,
	}, true
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}
