package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ahrherrera/mysql-notifier/internal/config"
	"github.com/ahrherrera/mysql-notifier/internal/crypto"
	"github.com/ahrherrera/mysql-notifier/internal/db"
	"github.com/ahrherrera/mysql-notifier/internal/http/router"
	"github.com/ahrherrera/mysql-notifier/internal/logging"
	"github.com/ahrherrera/mysql-notifier/internal/monitor"
	"github.com/ahrherrera/mysql-notifier/internal/repo"
	"github.com/ahrherrera/mysql-notifier/internal/service"
	"github.com/ahrherrera/mysql-notifier/internal/session"
	"github.com/ahrherrera/mysql-notifier/internal/ssh"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: cfg.LogConsole})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(cfg.GinMode)
	logger.Info("启动", zap.String("gin_mode", gin.Mode()), zap.String("db", cfg.SQLitePath))

	box, err := newBox(cfg)
	if err != nil {
		logger.Fatal("初始化加密失败", zap.Error(err))
	}
	box.WithLogger(logger.Named("crypto"))

	gdb, err := db.Open(cfg.SQLitePath, logger.Named("db"))
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	machineRepo := repo.NewMachineRepo(gdb, logger.Named("repo"))

	opts := []ssh.Option{
		ssh.WithPort(cfg.ProbePort),
		ssh.WithDialTimeout(cfg.ProbeTimeout),
		ssh.WithCheckCommand(cfg.ProbeCommand),
		ssh.WithCache(ssh.NewStatusCache(cfg.ProbeCacheTTL, nil)),
		ssh.WithLogger(logger.Named("ssh")),
	}
	if cfg.ProbeKnownHosts != "" {
		cb, err := ssh.KnownHostsCallback(cfg.ProbeKnownHosts)
		if err != nil {
			logger.Fatal("加载 known_hosts 失败", zap.Error(err))
		}
		opts = append(opts, ssh.WithHostKeyCallback(cb))
	}
	prober := ssh.NewProber(opts...)

	mon := monitor.New(machineRepo, prober, box, monitor.Options{
		Workers: cfg.MonitorWorkers,
		Timeout: 2 * cfg.ProbeTimeout,
		Logger:  logger.Named("monitor"),
	})
	if err := mon.Start(); err != nil {
		logger.Fatal("启动自动测试失败", zap.Error(err))
	}

	machines := service.NewMachinesService(machineRepo, mon, logger.Named("machines"))
	sessions := service.NewSessionsService(session.Config{
		QuietWindow:   cfg.QuietWindow,
		RepeatNotices: cfg.RepeatNotices,
	}, service.SessionsDeps{
		Machines: machines,
		Registry: machineRepo,
		Probe:    prober,
		Box:      box,
		Store:    service.NewSessionStore(cfg.SessionTTL, nil),
		Logger:   logger.Named("sessions"),
	})

	// 后台清理：过期会话与探测缓存
	janitor := cron.New()
	if _, err := janitor.AddFunc("@every 1m", func() {
		sessions.Sweep()
		if n := prober.Purge(); n > 0 {
			logger.Debug("清理探测缓存", zap.Int("count", n))
		}
	}); err != nil {
		logger.Fatal("添加清理任务失败", zap.Error(err))
	}
	janitor.Start()

	r := gin.New()
	router.Register(r, router.Deps{
		Machines:    machines,
		Sessions:    sessions,
		Registry:    machineRepo,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger.Named("http"),
	})

	srv := &http.Server{Addr: cfg.BindAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http 监听", zap.String("addr", cfg.BindAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http 启动失败", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("正在退出")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	janitor.Stop()
	mon.Stop(shutdownCtx)
}

func newBox(cfg config.Config) (*crypto.Box, error) {
	if cfg.MasterKey != "" {
		return crypto.NewBox(cfg.MasterKey)
	}
	return crypto.NewBoxFromPassphrase(cfg.MasterPassphrase, []byte(cfg.MasterSalt))
}
