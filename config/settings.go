package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings holds every tunable of the server process.
type Settings struct {
	Port     string `env:"PORT"`
	Prod     bool   `env:"PROD" envDefault:"false"`
	Debug    bool   `env:"DEBUG" envDefault:"false"`
	UseHTTPS bool   `env:"USE_HTTPS" envDefault:"false"`
	CertFile string `env:"TLS_CERT_FILE" envDefault:"/etc/letsencrypt/live/forest/fullchain.pem"`
	KeyFile  string `env:"TLS_KEY_FILE" envDefault:"/etc/letsencrypt/live/forest/privkey.pem"`

	Postgres Postgres

	RedisURL string `env:"REDIS_URL" envDefault:"localhost:6379"`

	SessionKey string        `env:"SESSION_KEY" envDefault:"forest-session"`
	JWTSecret  string        `env:"JWT_SECRET" envDefault:"forest-dev-secret"`
	JWTTTL     time.Duration `env:"JWT_TTL" envDefault:"24h"`

	KeyDir      string `env:"KEY_DIR" envDefault:"keys"`
	FallbackKey string `env:"FALLBACK_KEY" envDefault:"SecureKey7890123"`
	FallbackIV  string `env:"FALLBACK_IV" envDefault:"Vector4567890123"`

	TurnDuration      time.Duration `env:"TURN_DURATION" envDefault:"60s"`
	ValidationTimeout time.Duration `env:"VALIDATION_TIMEOUT" envDefault:"10s"`
	DisconnectGrace   time.Duration `env:"DISCONNECT_GRACE" envDefault:"10s"`
	RoundLimit        int           `env:"ROUND_LIMIT" envDefault:"15"`
}

// Postgres is the connection block read from POSTGRES_*.
type Postgres struct {
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	Database string `env:"POSTGRES_DATABASE"`
	Verbose  bool   `env:"VERBOSE_POSTGRES" envDefault:"false"`
	Migrate  bool   `env:"MIGRATE_POSTGRES" envDefault:"false"`
}

// DSN formats the connection string handed to lib/pq.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s", p.User, p.Password, p.Host, p.Port, p.Database)
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (Settings, error) {
	// A missing .env is fine in containers
	_ = godotenv.Load(files...)

	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if s.RoundLimit < 0 {
		return Settings{}, fmt.Errorf("ROUND_LIMIT must not be negative, got %d", s.RoundLimit)
	}
	if s.TurnDuration <= 0 {
		return Settings{}, fmt.Errorf("TURN_DURATION must be positive, got %s", s.TurnDuration)
	}
	return s, nil
}

// ListenPort resolves the port the way the deployment expects: PORT wins,
// otherwise 443 behind TLS and 8080 in plain HTTP.
func (s Settings) ListenPort() string {
	if s.Port != "" {
		return s.Port
	}
	if s.UseHTTPS {
		return "443"
	}
	return "8080"
}
