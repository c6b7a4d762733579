package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/joe-el-khoury/fbzmq/internal/transport"
)

type MonitorConfig struct {
	Name           string      `toml:"name"`
	ReplyAddr      string      `toml:"reply_addr"`
	PubAddr        string      `toml:"pub_addr"`
	PollIntervalMS int         `toml:"poll_interval_ms"`
	AdminAddr      string      `toml:"admin_addr"`
	CorsOrigins    []string    `toml:"cors_origins"`
	Pub            PubSettings `toml:"pub"`
}

type PubSettings struct {
	QueueDepth     int    `toml:"queue_depth"`
	OverflowPolicy string `toml:"overflow_policy"`
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Name:           "monitord",
		ReplyAddr:      "tcp://127.0.0.1:5566",
		PubAddr:        "tcp://127.0.0.1:5567",
		PollIntervalMS: 100,
		AdminAddr:      ":9000",
		CorsOrigins:    []string{"http://localhost:3000"},
		Pub: PubSettings{
			QueueDepth:     1024,
			OverflowPolicy: string(transport.OverflowDrop),
		},
	}
}

func LoadMonitorConfig(path string) (MonitorConfig, error) {
	cfg := DefaultMonitorConfig()
	if err := loadToml(path, &cfg); err != nil {
		return MonitorConfig{}, err
	}
	if err := ValidateMonitorConfig(cfg); err != nil {
		return MonitorConfig{}, err
	}
	return cfg, nil
}

func ValidateMonitorConfig(cfg MonitorConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("config: missing name")
	}
	if err := validateAddr("reply_addr", cfg.ReplyAddr); err != nil {
		return err
	}
	if err := validateAddr("pub_addr", cfg.PubAddr); err != nil {
		return err
	}
	if cfg.PollIntervalMS <= 0 {
		return fmt.Errorf("config: poll_interval_ms must be positive, got %d", cfg.PollIntervalMS)
	}
	if cfg.Pub.QueueDepth <= 0 {
		return fmt.Errorf("config: pub.queue_depth must be positive, got %d", cfg.Pub.QueueDepth)
	}
	switch transport.OverflowPolicy(cfg.Pub.OverflowPolicy) {
	case transport.OverflowDrop, transport.OverflowBlock:
	default:
		return fmt.Errorf("config: invalid pub.overflow_policy %q", cfg.Pub.OverflowPolicy)
	}
	return nil
}

func (c MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c MonitorConfig) PubConfig() transport.PubConfig {
	return transport.PubConfig{
		QueueDepth: c.Pub.QueueDepth,
		Policy:     transport.OverflowPolicy(c.Pub.OverflowPolicy),
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func validateAddr(field, addr string) error {
	if strings.HasPrefix(addr, "tcp://") || strings.HasPrefix(addr, "inproc://") {
		return nil
	}
	return fmt.Errorf("config: %s must be tcp:// or inproc://, got %q", field, addr)
}
