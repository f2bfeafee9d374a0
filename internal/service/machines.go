package service

import (
	"context"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/ahrherrera/mysql-notifier/internal/logging"
	"github.com/ahrherrera/mysql-notifier/internal/models"
	"github.com/ahrherrera/mysql-notifier/internal/monitor"
	"github.com/ahrherrera/mysql-notifier/internal/repo"
)

// Scheduler 自动测试计划；机器增删改后需要 Refresh
type Scheduler interface {
	Refresh() error
	CheckAll(ctx context.Context) ([]monitor.Status, error)
	CheckOne(ctx context.Context, id uint) (monitor.Status, error)
}

type MachinesService struct {
	r     *repo.MachineRepo
	sched Scheduler
	log   *zap.Logger
}

func NewMachinesService(r *repo.MachineRepo, sched Scheduler, log *zap.Logger) *MachinesService {
	log = logging.OrNop(log)
	return &MachinesService{r: r, sched: sched, log: log}
}

// ============ 查询 ============
func (s *MachinesService) List() ([]models.Machine, error) {
	return s.r.List()
}

func (s *MachinesService) Get(id uint) (*models.Machine, error) {
	return s.r.Get(id)
}

// ============ 写入 ============

// Persist 保存工作流确认过的记录：ID 为 0 新建，否则更新
func (s *MachinesService) Persist(m *models.Machine) (*models.Machine, error) {
	if m == nil {
		return nil, errors.NotValidf("nil machine")
	}
	var err error
	if m.ID == 0 {
		err = s.r.Create(m)
	} else {
		err = s.r.Update(m)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "persist machine %q", m.Host)
	}
	s.log.Info("已保存机器", zap.Uint("id", m.ID), zap.String("host", m.Host))
	s.refresh()
	return m, nil
}

func (s *MachinesService) Delete(id uint) error {
	if err := s.r.Delete(id); err != nil {
		return err
	}
	s.refresh()
	return nil
}

func (s *MachinesService) BatchDelete(ids []uint) (int64, error) {
	n, err := s.r.BatchDelete(ids)
	if err != nil {
		return 0, err
	}
	s.refresh()
	return n, nil
}

// ============ 状态 ============
func (s *MachinesService) CheckAll(ctx context.Context) ([]monitor.Status, error) {
	if s.sched == nil {
		return nil, errors.NotSupportedf("status check")
	}
	return s.sched.CheckAll(ctx)
}

func (s *MachinesService) CheckOne(ctx context.Context, id uint) (monitor.Status, error) {
	if s.sched == nil {
		return monitor.Status{}, errors.NotSupportedf("status check")
	}
	return s.sched.CheckOne(ctx, id)
}

func (s *MachinesService) refresh() {
	if s.sched == nil {
		return
	}
	if err := s.sched.Refresh(); err != nil {
		s.log.Warn("刷新自动测试计划失败", zap.Error(err))
	}
}
