package db

import (
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ahrherrera/mysql-notifier/internal/logging"
	"github.com/ahrherrera/mysql-notifier/internal/models"
)

// Open 打开 sqlite 并自动迁移
func Open(path string, log *zap.Logger) (*gorm.DB, error) {
	log = logging.OrNop(log)
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Annotatef(err, "open sqlite %s", path)
	}
	if err := gdb.AutoMigrate(&models.Machine{}); err != nil {
		return nil, errors.Annotate(err, "auto migrate")
	}
	log.Info("sqlite 初始化完成", zap.String("path", path))
	return gdb, nil
}
