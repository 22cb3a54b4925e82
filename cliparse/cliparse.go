package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Identity policy names. Selected per deployment, never per request.
const (
	PolicyCookie      = "cookie"
	PolicyFingerprint = "fingerprint"
	PolicyAccount     = "account"
	PolicyMinimal     = "minimal"
)

type Config struct {
	Port         int    `toml:"port"`
	DatabaseURL  string `toml:"database_url"`
	DatabaseType string `toml:"database_type"`
	BaseURL      string `toml:"base_url"`

	Policy            string `toml:"policy"`
	NewVoteLimit      int    `toml:"new_vote_limit"`
	ChangeVoteLimit   int    `toml:"change_vote_limit"`
	RateWindowMinutes int    `toml:"rate_window_minutes"`

	IPHashSalt    string `toml:"ip_hash_salt"`
	SessionSecret string `toml:"session_secret"`
}

// ParseFlags builds the configuration from an optional TOML file, CLI
// flags, and environment variables. Flags win over the file; env fills
// whatever is still unset.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var configPath string

	fs := flag.NewFlagSet("livetally", flag.ContinueOnError)

	fs.StringVar(&configPath, "config", "", "Optional TOML config file")

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Public base URL for share links")

	// Identity policy and rate ceilings
	fs.StringVar(&cfg.Policy, "policy", "", "Identity policy (cookie, fingerprint, account, minimal)")
	fs.IntVar(&cfg.NewVoteLimit, "rate-new", 0, "Votes allowed per IP per window (new votes)")
	fs.IntVar(&cfg.ChangeVoteLimit, "rate-change", 0, "Votes allowed per IP per window (vote changes)")
	fs.IntVar(&cfg.RateWindowMinutes, "rate-window", 0, "Rate window in minutes")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.IPHashSalt, "ip-salt", "", "IP hash salt (prefer env)")
	fs.StringVar(&cfg.SessionSecret, "session-secret", "", "Account session secret (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if configPath == "" {
		configPath = os.Getenv("LIVETALLY_CONFIG")
	}
	if configPath != "" {
		var fileCfg Config
		if _, err := toml.DecodeFile(configPath, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
		cfg = merge(cfg, fileCfg)
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("BASE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + strconv.Itoa(cfg.Port)
	}

	if cfg.Policy == "" {
		cfg.Policy = os.Getenv("IDENTITY_POLICY")
	}
	switch cfg.Policy {
	case "":
		cfg.Policy = PolicyCookie
	case PolicyCookie, PolicyFingerprint, PolicyAccount, PolicyMinimal:
	default:
		return Config{}, errors.New("policy must be one of: cookie, fingerprint, account, minimal")
	}

	if cfg.NewVoteLimit == 0 {
		cfg.NewVoteLimit = envInt("RATE_LIMIT_NEW", defaultNewLimit(cfg.Policy))
	}
	if cfg.ChangeVoteLimit == 0 {
		cfg.ChangeVoteLimit = envInt("RATE_LIMIT_CHANGE", defaultChangeLimit(cfg.Policy))
	}
	if cfg.RateWindowMinutes == 0 {
		cfg.RateWindowMinutes = envInt("RATE_WINDOW_MINUTES", 5)
	}

	// Secrets - MUST be provided
	if cfg.IPHashSalt == "" {
		cfg.IPHashSalt = os.Getenv("IP_HASH_SALT")
	}
	if cfg.IPHashSalt == "" {
		return Config{}, errors.New("IP_HASH_SALT required")
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	}
	if cfg.SessionSecret == "" && cfg.Policy == PolicyAccount {
		return Config{}, errors.New("SESSION_SECRET required for account policy")
	}

	return cfg, nil
}

// Legitimate revoting is bursty but still bounded, so the change ceiling
// sits above the new-vote ceiling. The minimal policy keeps one low bar.
func defaultNewLimit(policy string) int {
	if policy == PolicyMinimal {
		return 3
	}
	return 5
}

func defaultChangeLimit(policy string) int {
	if policy == PolicyMinimal {
		return 3
	}
	return 10
}

// merge fills zero-valued fields of flags with values from the file.
func merge(flags, file Config) Config {
	if flags.Port == 0 {
		flags.Port = file.Port
	}
	if flags.DatabaseURL == "" {
		flags.DatabaseURL = file.DatabaseURL
	}
	if flags.DatabaseType == "" {
		flags.DatabaseType = file.DatabaseType
	}
	if flags.BaseURL == "" {
		flags.BaseURL = file.BaseURL
	}
	if flags.Policy == "" {
		flags.Policy = file.Policy
	}
	if flags.NewVoteLimit == 0 {
		flags.NewVoteLimit = file.NewVoteLimit
	}
	if flags.ChangeVoteLimit == 0 {
		flags.ChangeVoteLimit = file.ChangeVoteLimit
	}
	if flags.RateWindowMinutes == 0 {
		flags.RateWindowMinutes = file.RateWindowMinutes
	}
	if flags.IPHashSalt == "" {
		flags.IPHashSalt = file.IPHashSalt
	}
	if flags.SessionSecret == "" {
		flags.SessionSecret = file.SessionSecret
	}
	return flags
}

func envInt(name string, fallback int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return fallback
}
