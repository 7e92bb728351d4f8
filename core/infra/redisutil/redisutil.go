package redisutil

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	envRedisTLSCA         = "REDIS_TLS_CA"
	envRedisTLSCert       = "REDIS_TLS_CERT"
	envRedisTLSKey        = "REDIS_TLS_KEY"
	envRedisTLSInsecure   = "REDIS_TLS_INSECURE"
	envRedisTLSServerName = "REDIS_TLS_SERVER_NAME"
	envRedisClusterAddrs  = "REDIS_CLUSTER_ADDRESSES"

	pingTimeout = 2 * time.Second
)

// Connect builds a universal client from a redis:// URL and verifies the
// connection with a bounded ping.
func Connect(ctx context.Context, url string) (redis.UniversalClient, error) {
	client, err := NewClient(url)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// NewClient creates a Redis universal client with optional TLS and clustering
// support taken from the environment.
func NewClient(url string) (redis.UniversalClient, error) {
	opts, err := ParseOptions(url)
	if err != nil {
		return nil, err
	}
	addrs := splitAddrs(os.Getenv(envRedisClusterAddrs))
	if len(addrs) == 0 {
		addrs = []string{opts.Addr}
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:     addrs,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}), nil
}

// ParseOptions parses a Redis URL and applies TLS settings from the environment.
func ParseOptions(url string) (*redis.Options, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	env := readTLSEnv()
	if env.empty() {
		return opts, nil
	}
	cfg, err := env.config(opts.TLSConfig)
	if err != nil {
		return nil, err
	}
	opts.TLSConfig = cfg
	return opts, nil
}

type tlsEnv struct {
	caPath     string
	certPath   string
	keyPath    string
	serverName string
	insecure   bool
}

func readTLSEnv() tlsEnv {
	return tlsEnv{
		caPath:     strings.TrimSpace(os.Getenv(envRedisTLSCA)),
		certPath:   strings.TrimSpace(os.Getenv(envRedisTLSCert)),
		keyPath:    strings.TrimSpace(os.Getenv(envRedisTLSKey)),
		serverName: strings.TrimSpace(os.Getenv(envRedisTLSServerName)),
		insecure:   isTruthy(os.Getenv(envRedisTLSInsecure)),
	}
}

func (e tlsEnv) empty() bool {
	return e.caPath == "" && e.certPath == "" && e.keyPath == "" && e.serverName == "" && !e.insecure
}

func (e tlsEnv) config(existing *tls.Config) (*tls.Config, error) {
	cfg := &tls.Config{}
	if existing != nil {
		cfg = existing.Clone()
	}
	if e.serverName != "" {
		cfg.ServerName = e.serverName
	}
	if e.insecure {
		cfg.InsecureSkipVerify = true
	}
	if e.caPath != "" {
		pem, err := os.ReadFile(e.caPath)
		if err != nil {
			return nil, fmt.Errorf("redis tls ca read: %w", err)
		}
		pool := cfg.RootCAs
		if pool == nil {
			pool = x509.NewCertPool()
		}
		if ok := pool.AppendCertsFromPEM(pem); !ok {
			return nil, fmt.Errorf("redis tls ca parse: %s", e.caPath)
		}
		cfg.RootCAs = pool
	}
	if e.certPath != "" || e.keyPath != "" {
		if e.certPath == "" || e.keyPath == "" {
			return nil, fmt.Errorf("redis tls cert/key must be set together")
		}
		cert, err := tls.LoadX509KeyPair(e.certPath, e.keyPath)
		if err != nil {
			return nil, fmt.Errorf("redis tls keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func isTruthy(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func splitAddrs(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
