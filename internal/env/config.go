package env

import (
	"context"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// DefaultPort is the port the replicator listens on.
const DefaultPort = 6776

type Config struct {
	Host string `env:"XDRPROBE_HOST,default=127.0.0.1"`
	Port int    `env:"XDRPROBE_PORT,default=6776"`

	// ReadyLog is the server log to watch for ReadyMarker before dialling.
	// Empty skips the wait.
	ReadyLog     string        `env:"XDRPROBE_READY_LOG"`
	ReadyMarker  string        `env:"XDRPROBE_READY_MARKER,default=SERVER_STARTED"`
	ReadyTimeout time.Duration `env:"XDRPROBE_READY_TIMEOUT,default=10s"`

	DialTimeout time.Duration `env:"XDRPROBE_DIAL_TIMEOUT,default=5s"`

	LogLevel  string `env:"XDRPROBE_LOG_LEVEL,default=info"`
	DebugHTTP bool   `env:"XDRPROBE_DEBUG_HTTP"`
}

// Addr is the host:port of the server under test.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
