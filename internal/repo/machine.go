package repo

import (
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ahrherrera/mysql-notifier/internal/logging"
	"github.com/ahrherrera/mysql-notifier/internal/models"
)

// MachineRepo 已登记机器；同时充当校验 / 提交用的 Registry
type MachineRepo struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewMachineRepo(db *gorm.DB, log *zap.Logger) *MachineRepo {
	log = logging.OrNop(log)
	return &MachineRepo{db: db, log: log}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFoundf(format, args...)
	}
	return errors.Trace(err)
}

// ============ 增删改 ============
func (r *MachineRepo) Create(m *models.Machine) error {
	m.Normalize()
	if r.HasHostNamed(m.Host) {
		return errors.AlreadyExistsf("machine %q", m.Host)
	}
	return errors.Trace(r.db.Create(m).Error)
}

// Update 全字段保存（Online=false 之类的零值也要写入）
func (r *MachineRepo) Update(m *models.Machine) error {
	m.Normalize()
	if x, err := r.FindByHost(m.Host); err == nil && x.ID != m.ID {
		return errors.AlreadyExistsf("machine %q", m.Host)
	}
	return errors.Trace(r.db.Save(m).Error)
}

func (r *MachineRepo) Delete(id uint) error {
	tx := r.db.Delete(&models.Machine{}, id)
	if tx.Error != nil {
		return errors.Trace(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return errors.NotFoundf("machine %d", id)
	}
	return nil
}

func (r *MachineRepo) BatchDelete(ids []uint) (int64, error) {
	tx := r.db.Delete(&models.Machine{}, ids)
	return tx.RowsAffected, errors.Trace(tx.Error)
}

func (r *MachineRepo) UpdateStatus(id uint, online bool, at time.Time) error {
	tx := r.db.Model(&models.Machine{}).Where("id = ?", id).
		Updates(map[string]any{"online": online, "last_tested_at": at})
	if tx.Error != nil {
		return errors.Trace(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return errors.NotFoundf("machine %d", id)
	}
	return nil
}

// ============ 查询 ============
func (r *MachineRepo) List() ([]models.Machine, error) {
	var ms []models.Machine
	return ms, errors.Trace(r.db.Order("id asc").Find(&ms).Error)
}

func (r *MachineRepo) Get(id uint) (*models.Machine, error) {
	var m models.Machine
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, notFound(err, "machine %d", id)
	}
	return &m, nil
}

func (r *MachineRepo) FindByHost(host string) (*models.Machine, error) {
	var m models.Machine
	if err := r.db.Where("host_key = ?", models.HostKey(host)).First(&m).Error; err != nil {
		return nil, notFound(err, "machine %q", host)
	}
	return &m, nil
}

// ============ Registry ============

// HasHostNamed 忽略大小写；查询出错按不存在处理并记日志
func (r *MachineRepo) HasHostNamed(name string) bool {
	var n int64
	err := r.db.Model(&models.Machine{}).Where("host_key = ?", models.HostKey(name)).Count(&n).Error
	if err != nil {
		r.log.Warn("查询主机失败", zap.String("host", name), zap.Error(err))
		return false
	}
	return n > 0
}

func (r *MachineRepo) FindByHostName(name string) (*models.Machine, bool) {
	m, err := r.FindByHost(name)
	if err != nil {
		if !errors.Is(err, errors.NotFound) {
			r.log.Warn("查询主机失败", zap.String("host", name), zap.Error(err))
		}
		return nil, false
	}
	return m, true
}

// Overwrite 保留原记录的 ID 与在线状态，只替换凭据与测试间隔
func (r *MachineRepo) Overwrite(existing *models.Machine, replacement models.Machine) (models.Machine, error) {
	if existing == nil {
		return models.Machine{}, errors.NotValidf("nil existing machine")
	}
	var out models.Machine
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, existing.ID).Error; err != nil {
			return notFound(err, "machine %d", existing.ID)
		}
		out.Host = replacement.Host
		out.User = replacement.User
		out.Password = replacement.Password
		out.AutoTestIntervalValue = replacement.AutoTestIntervalValue
		out.AutoTestIntervalUnit = replacement.AutoTestIntervalUnit
		out.Normalize()
		return tx.Save(&out).Error
	})
	if err != nil {
		return models.Machine{}, errors.Annotatef(err, "overwrite machine %q", existing.Host)
	}
	r.log.Info("已覆盖机器", zap.Uint("id", out.ID), zap.String("host", out.Host))
	return out, nil
}
