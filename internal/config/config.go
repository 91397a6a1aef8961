package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type BrokerConfig struct {
	BaseURL  string `yaml:"base_url"`
	TokenDir string `yaml:"token_dir"`
}

type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// OrderWorkers bounds in-flight broker calls for order placement.
	// Other commands fan out with one worker per account.
	OrderWorkers int           `yaml:"order_workers"`
	TaskTimeout  time.Duration `yaml:"task_timeout"`

	DefaultExchange string `yaml:"default_exchange"`

	AccountsFile  string `yaml:"accounts_file"`
	ShortcutsFile string `yaml:"shortcuts_file"`

	Broker BrokerConfig `yaml:"broker"`
}

const (
	_portDefault            = "8181"
	_orderWorkersDefault    = 6
	_taskTimeoutDefault     = 30 * time.Second
	_defaultExchangeDefault = "NSE"
	_accountsFileDefault    = "./configs/accounts.yaml"
	_tokenDirDefault        = "./tokens"
)

func (c *Config) ValidateAndSetup() error {
	if c.Port == "" {
		c.Port = _portDefault
	}
	if c.OrderWorkers <= 0 {
		c.OrderWorkers = _orderWorkersDefault
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = _taskTimeoutDefault
	}
	if c.DefaultExchange == "" {
		c.DefaultExchange = _defaultExchangeDefault
	}
	if c.AccountsFile == "" {
		c.AccountsFile = _accountsFileDefault
	}
	if c.Broker.BaseURL == "" {
		return fmt.Errorf("broker base_url is required")
	}
	if c.Broker.TokenDir == "" {
		c.Broker.TokenDir = _tokenDirDefault
	}
	return nil
}

func LoadConfig(filename string) (Config, error) {
	var cfg Config
	input, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("%w: can't read file", err)
	}

	if err := yaml.Unmarshal(input, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: can't unmarshal config", err)
	}

	if err := cfg.ValidateAndSetup(); err != nil {
		return cfg, fmt.Errorf("%w: can't setup cfg", err)
	}

	return cfg, nil
}
