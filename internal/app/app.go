package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/timer-bot/internal/backup"
	"github.com/ykvlv/timer-bot/internal/config"
	"github.com/ykvlv/timer-bot/internal/scheduler"
	"github.com/ykvlv/timer-bot/internal/store"
	"github.com/ykvlv/timer-bot/internal/telegram"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    *store.SQLiteRepo
	router  *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting timer-bot",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("db", a.cfg.DBPath),
	)

	// Open SQLite and run migrations.
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath, a.cfg.MaxTimers)
	if err != nil {
		a.log.Error("open sqlite failed", zap.Error(err))
		return err
	}
	a.repo = repo
	a.log.Info("sqlite ready")

	backups, err := backup.NewManager(repo, a.cfg.BackupDir, a.log)
	if err != nil {
		a.log.Error("backup manager init failed", zap.Error(err))
		return err
	}

	a.router = telegram.NewRouter(a.bot, a.log, repo, telegram.Limits{
		MaxTimers: a.cfg.MaxTimers,
		MinHours:  a.cfg.MinDurationHours,
		MaxHours:  a.cfg.MaxDurationHours,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The two background loops share the store handle with the front
	// end; the store's transactions are the only synchronization.
	scanner := scheduler.NewExpiryScanner(repo, a.router, a.log,
		time.Duration(a.cfg.CheckIntervalSec)*time.Second)
	maintenance := scheduler.NewMaintenance(repo, backups, a.log,
		time.Duration(a.cfg.MaintenanceIntervalSec)*time.Second, a.cfg.BackupKeepDays)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); scanner.Run(ctx) }()
	go func() { defer wg.Done(); maintenance.Run(ctx) }()

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			// Create a short-lived shutdown context and cancel it immediately after use.
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()
			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}

			// Let both loops finish the tick in progress before the
			// store goes away.
			wg.Wait()

			if err := a.repo.Close(); err != nil {
				a.log.Warn("store close error", zap.Error(err))
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
