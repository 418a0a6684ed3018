package config

import (
    "fmt"
    "os"
    "strconv"
    "time"

    goyaml "gopkg.in/yaml.v3"
)

type StoreConfig struct {
    // Backend is "sheets" or "sqlite".
    Backend         string `yaml:"backend"`
    CredentialsFile string `yaml:"credentials_file"`
    WorkSheetID     string `yaml:"work_sheet_id"`
    StatsSheetID    string `yaml:"stats_sheet_id"`
    WorkSheetName   string `yaml:"work_sheet_name"`
    StatsSheetName  string `yaml:"stats_sheet_name"`
    DBPath          string `yaml:"db_path"`
}

type Config struct {
    BotToken        string      `yaml:"bot_token"`
    AdminID         int64       `yaml:"admin_id"`
    PublicURL       string      `yaml:"public_url"`
    ListenAddr      string      `yaml:"listen_addr"`
    Timezone        string      `yaml:"timezone"`
    CacheTTLSeconds int         `yaml:"cache_ttl_seconds"`
    ChooseMode      bool        `yaml:"choose_mode"`
    Store           StoreConfig `yaml:"store"`
}

func MustLoad(path string) (*Config, error) {
    cfg := &Config{
        ListenAddr:      ":3000",
        CacheTTLSeconds: 30,
        Store: StoreConfig{
            Backend:        "sheets",
            WorkSheetName:  "Sheet1",
            StatsSheetName: "Sheet1",
        },
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil {
            return nil, err
        }
        if err := goyaml.Unmarshal(b, cfg); err != nil {
            return nil, err
        }
    }

    if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
        cfg.BotToken = v
    }
    if v := os.Getenv("ADMIN_USER_ID"); v != "" {
        id, err := strconv.ParseInt(v, 10, 64)
        if err != nil {
            return nil, fmt.Errorf("ADMIN_USER_ID: %w", err)
        }
        cfg.AdminID = id
    }
    if v := os.Getenv("SERVER_URL"); v != "" {
        cfg.PublicURL = v
    }
    if v := os.Getenv("PORT"); v != "" {
        cfg.ListenAddr = ":" + v
    }
    if v := os.Getenv("WORK_SHEET_ID"); v != "" {
        cfg.Store.WorkSheetID = v
    }
    if v := os.Getenv("STATS_SHEET_ID"); v != "" {
        cfg.Store.StatsSheetID = v
    }
    if v := os.Getenv("DB_PATH"); v != "" {
        cfg.Store.DBPath = v
    }
    if v := os.Getenv("TZ"); v != "" {
        cfg.Timezone = v
    } else if cfg.Timezone != "" {
        _ = os.Setenv("TZ", cfg.Timezone)
    }
    if cfg.Timezone != "" {
        if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
            time.Local = loc
        }
    }

    return cfg, cfg.validate()
}

func (c *Config) validate() error {
    if c.BotToken == "" {
        return fmt.Errorf("bot_token must be set")
    }
    if c.PublicURL == "" {
        return fmt.Errorf("public_url must be set")
    }
    switch c.Store.Backend {
    case "sheets":
        if c.Store.WorkSheetID == "" || c.Store.StatsSheetID == "" {
            return fmt.Errorf("work_sheet_id and stats_sheet_id must be set for the sheets backend")
        }
        if c.Store.CredentialsFile == "" {
            return fmt.Errorf("credentials_file must be set for the sheets backend")
        }
    case "sqlite":
        if c.Store.DBPath == "" {
            return fmt.Errorf("db_path must be set for the sqlite backend")
        }
    default:
        return fmt.Errorf("unknown store backend %q", c.Store.Backend)
    }
    return nil
}

func (c *Config) CacheTTL() time.Duration {
    return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *Config) Location() *time.Location {
    if c.Timezone == "" {
        return time.Local
    }
    if loc, err := time.LoadLocation(c.Timezone); err == nil {
        return loc
    }
    return time.Local
}
