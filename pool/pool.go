package pool

import (
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// HTTPPool is a source of *http.Client for callers that want connection
// reuse across many short-lived requests — Client.NewClientWithPool (in the
// parent module) and cmd/mcpprobe are the two callers in this tree.
type HTTPPool interface {
	GetHTTPClient() *http.Client
}

// PoolConfig tunes the transport behind the default HTTPPool.
type PoolConfig struct {
	// InsecureSkipVerify allows self-signed certificates. Leave false in
	// production.
	InsecureSkipVerify bool

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	Timeout time.Duration
}

// DefaultPoolConfig returns secure-by-default settings sized for long-lived
// MCP sessions rather than short request/response HTTP calls.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		InsecureSkipVerify:  false,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		Timeout:             5 * time.Minute,
	}
}

var (
	defaultPool     HTTPPool
	poolOnce        sync.Once
	poolConfig      *PoolConfig
	poolConfigMutex sync.RWMutex
)

// SetPool injects a process-wide pool, overriding the lazily built default.
func SetPool(pool HTTPPool) {
	defaultPool = pool
}

// GetPool returns the process-wide pool, building the default one (from
// poolConfig or DefaultPoolConfig) on first use.
func GetPool() HTTPPool {
	if defaultPool == nil {
		poolOnce.Do(func() {
			defaultPool = newDefaultPoolImpl()
		})
	}
	return defaultPool
}

// SetPoolConfig configures the lazily built default pool. Must be called
// before the first GetPool call to take effect.
func SetPoolConfig(config *PoolConfig) {
	poolConfigMutex.Lock()
	defer poolConfigMutex.Unlock()
	poolConfig = config
}

// GetPoolConfig returns a copy of the current default-pool configuration.
func GetPoolConfig() PoolConfig {
	poolConfigMutex.RLock()
	defer poolConfigMutex.RUnlock()

	if poolConfig == nil {
		return *DefaultPoolConfig()
	}
	return *poolConfig
}

// NewPool builds a standalone HTTP pool from config, with zero fields in
// config falling back to DefaultPoolConfig()'s values.
//
// Example:
//
//	insecurePool := pool.NewPool(&pool.PoolConfig{InsecureSkipVerify: true})
func NewPool(config *PoolConfig) HTTPPool {
	defaults := DefaultPoolConfig()

	merged := &PoolConfig{
		InsecureSkipVerify:  config.InsecureSkipVerify,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		Timeout:             config.Timeout,
	}

	if merged.MaxIdleConns == 0 {
		merged.MaxIdleConns = defaults.MaxIdleConns
	}
	if merged.MaxIdleConnsPerHost == 0 {
		merged.MaxIdleConnsPerHost = defaults.MaxIdleConnsPerHost
	}
	if merged.IdleConnTimeout == 0 {
		merged.IdleConnTimeout = defaults.IdleConnTimeout
	}
	if merged.Timeout == 0 {
		merged.Timeout = defaults.Timeout
	}

	return createPoolWithConfig(merged)
}

// DefaultPool is the HTTPPool GetPool lazily constructs.
type DefaultPool struct {
	httpClient *http.Client
}

func newDefaultPoolImpl() *DefaultPool {
	poolConfigMutex.RLock()
	cfg := poolConfig
	poolConfigMutex.RUnlock()

	if cfg == nil {
		cfg = DefaultPoolConfig()
	}

	return createPoolWithConfig(cfg)
}

func createPoolWithConfig(cfg *PoolConfig) *DefaultPool {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         tls.VersionTLS13,
		},
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	http2.ConfigureTransport(transport)

	return &DefaultPool{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

func (p *DefaultPool) GetHTTPClient() *http.Client {
	return p.httpClient
}

var _ HTTPPool = (*DefaultPool)(nil)
