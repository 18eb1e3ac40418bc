package ledger

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables read by NewFromEnv.
const (
	EnvHost = "LEDGER_HOST"
	EnvPort = "LEDGER_PORT"

	defaultEnvHost = "127.0.0.1"
	defaultEnvPort = 8080
)

// NewFromEnv builds a Client from LEDGER_HOST and LEDGER_PORT, defaulting to
// 127.0.0.1:8080 when they are unset or blank.
func NewFromEnv(opts ...Option) (*Client, error) {
	host := strings.TrimSpace(os.Getenv(EnvHost))
	if host == "" {
		host = defaultEnvHost
	}

	port := defaultEnvPort
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvPort, raw)
		}
		port = p
	}

	return New(host, port, opts...)
}
