package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const defaultUpstreamURL = "https://water.gateway.srpnet.com"

var (
	ErrMissingEnv      = errors.New("missing required environment variables")
	ErrAccountMismatch = errors.New("mismatch between accountnum and accountname")
	ErrInvalidAccounts = errors.New("invalid account configuration")
)

type Config struct {
	Port         string
	AccountIDs   []string
	AccountNames []string
	TZOffset     string
	UpstreamURL  string
	Env          string
	LogLevel     slog.Level
}

// Load reads the process environment, after merging in a .env file from the
// working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, proceeding without it")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	required := []string{"PORT", "accountnum", "accountname", "tzoffset"}
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(getenv(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	ids := splitList(getenv("accountnum"))
	names := splitList(getenv("accountname"))
	if len(ids) != len(names) {
		return nil, fmt.Errorf("%w: found %d account number(s) but %d account name(s)", ErrAccountMismatch, len(ids), len(names))
	}

	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("%w: empty account number at position %d", ErrInvalidAccounts, i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate account number %q", ErrInvalidAccounts, id)
		}
		seen[id] = struct{}{}
	}

	upstream := strings.TrimRight(getenv("UPSTREAM_BASE_URL"), "/")
	if upstream == "" {
		upstream = defaultUpstreamURL
	}

	env := getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	level := slog.LevelInfo
	if raw := getenv("LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
		}
	}

	return &Config{
		Port:         strings.TrimSpace(getenv("PORT")),
		AccountIDs:   ids,
		AccountNames: names,
		TZOffset:     getenv("tzoffset"),
		UpstreamURL:  upstream,
		Env:          env,
		LogLevel:     level,
	}, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
