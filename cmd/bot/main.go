package main

import (
    "context"
    "log/slog"
    "os"
    "os/signal"
    "syscall"
    "time"

    tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
    "github.com/joho/godotenv"
    "github.com/spf13/cobra"

    "github.com/rferdous/microtask-bot/internal/config"
    "github.com/rferdous/microtask-bot/internal/lib"
    "github.com/rferdous/microtask-bot/internal/rowstore"
    "github.com/rferdous/microtask-bot/internal/webhook"
)

var cfgPath string

var rootCmd = &cobra.Command{
    Use:           "microtask-bot",
    Short:         "Telegram micro-task assignment bot",
    SilenceUsage:  true,
    SilenceErrors: true,
}

var serveCmd = &cobra.Command{
    Use:   "serve",
    Short: "Register the webhook and serve updates",
    RunE:  runServe,
}

func init() {
    serveCmd.Flags().StringVarP(&cfgPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to the yaml config")
    rootCmd.AddCommand(serveCmd)
}

func main() {
    slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
    if err := rootCmd.Execute(); err != nil {
        slog.Error("fatal", "err", err)
        os.Exit(1)
    }
}

func runServe(cmd *cobra.Command, args []string) error {
    if err := godotenv.Load(); err != nil {
        slog.Info(".env file not found, using environment variables")
    }
    cfg, err := config.MustLoad(cfgPath)
    if err != nil {
        return err
    }

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    tasksTbl, usersTbl, progress, err := openStore(ctx, cfg)
    if err != nil {
        return err
    }

    api, err := tgbotapi.NewBotAPI(cfg.BotToken)
    if err != nil {
        return err
    }
    api.Debug = false

    bot := lib.New(api, tasksTbl, usersTbl, progress, lib.Options{
        AdminID:    cfg.AdminID,
        TZ:         cfg.Location(),
        CacheTTL:   cfg.CacheTTL(),
        ChooseMode: cfg.ChooseMode,
    })

    wh, err := tgbotapi.NewWebhook(cfg.PublicURL + "/bot" + cfg.BotToken)
    if err != nil {
        return err
    }
    if _, err := api.Request(wh); err != nil {
        return err
    }

    e := webhook.New(cfg.BotToken, bot.HandleUpdate)
    go func() {
        slog.Info("webhook server listening", "addr", cfg.ListenAddr, "bot", api.Self.UserName)
        if err := e.Start(cfg.ListenAddr); err != nil {
            slog.Info("server stopped", "err", err)
        }
    }()

    <-ctx.Done()

    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = e.Shutdown(shutdownCtx)
    slog.Info("webhook server shut down")
    return nil
}

func openStore(ctx context.Context, cfg *config.Config) (tasks, users rowstore.Table, progress rowstore.ProgressReader, err error) {
    switch cfg.Store.Backend {
    case "sqlite":
        st, err := rowstore.OpenSQLite(cfg.Store.DBPath)
        if err != nil {
            return nil, nil, nil, err
        }
        return st.Tasks(), st.Users(), st, nil
    default:
        svc, err := rowstore.NewSheetsService(ctx, cfg.Store.CredentialsFile)
        if err != nil {
            return nil, nil, nil, err
        }
        tasks := rowstore.NewSheetsTable(svc, cfg.Store.WorkSheetID, cfg.Store.WorkSheetName, true)
        users := rowstore.NewSheetsTable(svc, cfg.Store.StatsSheetID, cfg.Store.StatsSheetName, false)
        return tasks, users, rowstore.NewSheetsProgress(svc, cfg.Store.WorkSheetID), nil
    }
}
