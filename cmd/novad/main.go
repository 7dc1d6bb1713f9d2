package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"Nova-Assistant/internal/agent"
	"Nova-Assistant/internal/api"
	"Nova-Assistant/internal/auth"
	"Nova-Assistant/internal/config"
	"Nova-Assistant/internal/journal"
	"Nova-Assistant/internal/llm"
	"Nova-Assistant/internal/llm/openai"
	"Nova-Assistant/internal/memory"
	"Nova-Assistant/internal/observability/alerting"
	"Nova-Assistant/internal/observability/metrics"
	"Nova-Assistant/internal/plan"
	"Nova-Assistant/internal/session"
	"Nova-Assistant/internal/storage/mysql"
	"Nova-Assistant/internal/tools"
	"Nova-Assistant/pkg/logger"
)

// main 是 Nova 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("novad 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("NOVA_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "nova.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	// 记忆仓库。
	repo, err := createMemoryRepository(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.L().Warn("关闭记忆仓库失败", "error", err)
		}
	}()

	// 会话存储。
	sessions, err := createSessionStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.L().Warn("关闭会话存储失败", "error", err)
		}
	}()

	// 留痕队列与后台处理器。
	queue, err := createJournalQueue(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.L().Warn("关闭留痕队列失败", "error", err)
		}
	}()

	processor := journal.NewProcessor(queue, repo,
		journal.WithWorkers(cfg.Journal.Workers),
		journal.WithAlerts(alerting.NewFanout(&alerting.LogNotifier{})),
	)
	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()
	go func() {
		if err := processor.Run(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("留痕处理器异常退出", "error", err)
		}
	}()

	// 规划模型与工具目录。
	oracle, err := createOracleClient(cfg)
	if err != nil {
		return err
	}
	catalog, err := plan.LoadCatalog(cfg.Tools.CatalogPath)
	if err != nil {
		return err
	}

	// 工具后端。
	toolClient, err := tools.NewClient(tools.Config{
		BaseURL: cfg.Tools.BaseURL,
		Timeout: time.Duration(cfg.Tools.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	authService, err := auth.NewService(auth.Config{
		Mode:   auth.Mode(cfg.Auth.Mode),
		Tokens: staticTokens(cfg.Auth.Tokens),
	})
	if err != nil {
		return err
	}

	planner := agent.NewPlanner(oracle,
		agent.WithOracleTimeout(time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second),
		agent.WithCatalog(catalog),
	)

	// 独立的指标端口可选，未配置时 /metrics 挂在 API 端口上。
	if cfg.Telemetry.MetricsAddress != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Telemetry.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("指标服务异常退出", "error", err)
			}
		}()
	}

	server := api.NewServer(cfg.Server.Address, api.Dependencies{
		Planner:    planner,
		Executor:   agent.NewStepExecutor(toolClient),
		Sessions:   sessions,
		Memory:     repo,
		Contexts:   memory.NewContextBuilder(repo),
		Recorder:   journal.NewRecorder(queue),
		Auth:       authService,
		ToolHealth: toolClient,
	})

	logger.L().Info("novad 启动",
		"address", cfg.Server.Address,
		"memory_driver", cfg.Memory.Driver,
		"session_driver", cfg.Session.Driver,
		"journal_driver", cfg.Journal.Driver,
		"oracle_provider", cfg.Oracle.Provider)

	return server.Start(ctx)
}

func createMemoryRepository(cfg *config.Config) (memory.Repository, error) {
	switch cfg.Memory.Driver {
	case "", "file":
		return memory.NewFileRepository(cfg.Memory.Path)
	case "mysql":
		return mysql.NewRepository(cfg.Memory.DSN)
	default:
		return nil, fmt.Errorf("未知的记忆存储驱动: %s", cfg.Memory.Driver)
	}
}

func createSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Driver {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		return session.NewRedisStore(session.RedisStoreConfig{
			Address:  cfg.Session.Redis.Address,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
	default:
		return nil, fmt.Errorf("未知的会话存储驱动: %s", cfg.Session.Driver)
	}
}

func createJournalQueue(cfg *config.Config) (journal.Queue, error) {
	switch cfg.Journal.Driver {
	case "", "memory":
		return journal.NewMemoryQueue(0), nil
	case "redis":
		return journal.NewRedisQueue(journal.RedisQueueConfig{
			Address:  cfg.Journal.Redis.Address,
			Password: cfg.Journal.Redis.Password,
			DB:       cfg.Journal.Redis.DB,
			Queue:    cfg.Journal.Redis.Queue,
		})
	case "rabbitmq":
		return journal.NewRabbitMQQueue(journal.RabbitMQConfig{
			URL:     cfg.Journal.RabbitMQ.URL,
			Queue:   cfg.Journal.RabbitMQ.Queue,
			Durable: cfg.Journal.RabbitMQ.Durable,
		})
	default:
		return nil, fmt.Errorf("未知的留痕队列驱动: %s", cfg.Journal.Driver)
	}
}

func createOracleClient(cfg *config.Config) (llm.Client, error) {
	switch cfg.Oracle.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		apiKey := strings.TrimSpace(cfg.Oracle.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("NOVA_ORACLE_API_KEY"))
		}
		if apiKey == "" {
			return nil, errors.New("openai provider 需要配置 api_key 或 NOVA_ORACLE_API_KEY")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.Oracle.BaseURL,
			Model:   cfg.Oracle.Model,
			Timeout: time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("未知的规划模型 provider: %s", cfg.Oracle.Provider)
	}
}

func staticTokens(tokens []config.AuthTokenConfig) []auth.StaticToken {
	converted := make([]auth.StaticToken, 0, len(tokens))
	for _, token := range tokens {
		converted = append(converted, auth.StaticToken{
			Token:       token.Token,
			Name:        token.Name,
			Permissions: token.Permissions,
			Disabled:    token.Disabled,
		})
	}
	return converted
}
