package service

import (
	"context"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/ahrherrera/mysql-notifier/internal/crypto"
	"github.com/ahrherrera/mysql-notifier/internal/logging"
	"github.com/ahrherrera/mysql-notifier/internal/models"
	"github.com/ahrherrera/mysql-notifier/internal/notice"
	"github.com/ahrherrera/mysql-notifier/internal/repo"
	"github.com/ahrherrera/mysql-notifier/internal/session"
	"github.com/ahrherrera/mysql-notifier/internal/workflow"
)

type SessionsService struct {
	machines *MachinesService
	reg      *repo.MachineRepo
	probe    workflow.Probe
	box      *crypto.Box
	store    *SessionStore
	cfg      session.Config
	clk      clock.Clock
	log      *zap.Logger
}

type SessionsDeps struct {
	Machines *MachinesService
	Registry *repo.MachineRepo
	Probe    workflow.Probe
	Box      *crypto.Box
	Store    *SessionStore
	Clock    clock.Clock
	Logger   *zap.Logger
}

func NewSessionsService(cfg session.Config, d SessionsDeps) *SessionsService {
	if d.Clock == nil {
		d.Clock = clock.WallClock
	}
	d.Logger = logging.OrNop(d.Logger)
	if d.Store == nil {
		d.Store = NewSessionStore(0, d.Clock)
	}
	return &SessionsService{
		machines: d.Machines, reg: d.Registry, probe: d.Probe, box: d.Box,
		store: d.Store, cfg: cfg, clk: d.Clock, log: d.Logger,
	}
}

// View 会话当前状态，连同自上次查看以来的提示
type View struct {
	ID       string    `json:"id"`
	OpenedAt time.Time `json:"opened_at"`
	session.Snapshot
	Notices []notice.Notice `json:"notices"`
}

// ActionResult 测试 / 提交的结果；提交成功后会话关闭，View 为最后状态
type ActionResult struct {
	Outcome workflow.Outcome `json:"outcome"`
	Closed  bool             `json:"closed"`
	View    View             `json:"session"`
}

// Patch 为 nil 的字段不改
type Patch struct {
	Host          *string
	User          *string
	Password      *string
	IntervalValue *uint
	IntervalUnit  *string
}

// ============ 打开 / 关闭 ============

// Open machineID 为 0 是新增；否则以该机器为编辑对象
func (s *SessionsService) Open(machineID uint) (View, error) {
	var editing *session.Editing
	if machineID != 0 {
		m, err := s.reg.Get(machineID)
		if err != nil {
			return View{}, err
		}
		pass, err := s.box.Open(m.Password)
		if err != nil {
			return View{}, errors.Annotatef(err, "decrypt password of machine %d", m.ID)
		}
		editing = &session.Editing{Machine: *m, Password: pass}
	}

	q := notice.NewQueue()
	sess := session.New(s.cfg, session.Deps{
		Registry: s.reg,
		Probe:    s.probe,
		Notifier: notice.Tee{q, notice.Log{L: s.log}},
		Sealer:   s.box,
		Clock:    s.clk,
		Logger:   s.log,
	}, editing)
	ls := s.store.Add(sess, q)
	s.log.Debug("打开会话", zap.String("id", ls.ID), zap.Uint("machine", machineID))
	return s.view(ls), nil
}

func (s *SessionsService) Close(id string) error {
	if !s.store.Delete(id) {
		return errors.NotFoundf("session %q", id)
	}
	return nil
}

// Sweep 清理过期会话
func (s *SessionsService) Sweep() int {
	n := s.store.Sweep()
	if n > 0 {
		s.log.Info("清理过期会话", zap.Int("count", n))
	}
	return n
}

// ============ 输入 ============

func (s *SessionsService) Get(id string) (View, error) {
	ls, err := s.store.Get(id)
	if err != nil {
		return View{}, err
	}
	return s.view(ls), nil
}

func (s *SessionsService) Update(id string, p Patch) (View, error) {
	ls, err := s.store.Get(id)
	if err != nil {
		return View{}, err
	}
	if p.IntervalValue != nil || p.IntervalUnit != nil {
		snap := ls.S.Snapshot()
		value, unit := snap.IntervalValue, snap.IntervalUnit
		if p.IntervalValue != nil {
			value = *p.IntervalValue
		}
		if p.IntervalUnit != nil {
			u, ok := models.ParseIntervalUnit(*p.IntervalUnit)
			if !ok {
				return View{}, errors.NotValidf("interval unit %q", strings.TrimSpace(*p.IntervalUnit))
			}
			unit = u
		}
		ls.S.OnIntervalChanged(value, unit)
	}
	if p.Host != nil {
		ls.S.OnHostTextChanged(*p.Host)
	}
	if p.User != nil {
		ls.S.OnUserTextChanged(*p.User)
	}
	if p.Password != nil {
		ls.S.OnPasswordChanged(*p.Password)
	}
	return s.view(ls), nil
}

// Leave 离开输入框，立即完成待处理的校验
func (s *SessionsService) Leave(id string) (View, error) {
	ls, err := s.store.Get(id)
	if err != nil {
		return View{}, err
	}
	ls.S.OnFieldLeft()
	return s.view(ls), nil
}

// ============ 动作 ============

func (s *SessionsService) Test(ctx context.Context, id string) (ActionResult, error) {
	ls, err := s.store.Get(id)
	if err != nil {
		return ActionResult{}, err
	}
	out := ls.S.RequestTest(ctx)
	return ActionResult{Outcome: out, View: s.view(ls)}, nil
}

// Commit overwrite 是对"覆盖已有机器"确认框的预先回答
func (s *SessionsService) Commit(ctx context.Context, id string, forceTest, overwrite bool) (ActionResult, error) {
	ls, err := s.store.Get(id)
	if err != nil {
		return ActionResult{}, err
	}
	if overwrite {
		ls.Notices.SetConfirm(notice.Yes)
	} else {
		ls.Notices.SetConfirm(notice.No)
	}

	out := ls.S.RequestCommit(ctx, forceTest)
	if out.Kind != workflow.Committed {
		return ActionResult{Outcome: out, View: s.view(ls)}, nil
	}

	saved, err := s.machines.Persist(out.Entry)
	if err != nil {
		return ActionResult{Outcome: out, View: s.view(ls)}, err
	}
	out.Entry = saved
	s.store.Delete(id)
	s.log.Info("会话已提交", zap.String("id", id), zap.Uint("machine", saved.ID), zap.Bool("overwritten", out.Overwritten))
	return ActionResult{Outcome: out, Closed: true, View: s.view(ls)}, nil
}

func (s *SessionsService) view(ls *Live) View {
	return View{ID: ls.ID, OpenedAt: ls.Opened, Snapshot: ls.S.Snapshot(), Notices: ls.Notices.Drain()}
}
