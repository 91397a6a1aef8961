package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/multibroker/oms/internal/risk"
	"gopkg.in/yaml.v3"
)

// AccountConfig is one row of the accounts file: credentials, the capital
// multiplier applied to every requested quantity, the risk policy and the
// exchange code selecting the allowed segments.
type AccountConfig struct {
	ClientID string  `yaml:"client_id"`
	Password string  `yaml:"password"`
	PIN      string  `yaml:"pin"`
	Secret   string  `yaml:"secret"`
	Capital  float64 `yaml:"capital"`
	ExcCode  int     `yaml:"exc_code"`

	Risk risk.Params `yaml:",inline"`
}

func (c *AccountConfig) ValidateAndSetup() error {
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	c.ClientID = strings.ToUpper(c.ClientID)
	if c.Capital <= 0 {
		c.Capital = 1.0
	}
	return nil
}

func LoadAccounts(filename string) ([]AccountConfig, error) {
	input, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: can't read file", err)
	}

	var accounts []AccountConfig
	if err := yaml.Unmarshal(input, &accounts); err != nil {
		return nil, fmt.Errorf("%w: can't unmarshal accounts", err)
	}

	for i := range accounts {
		if err := accounts[i].ValidateAndSetup(); err != nil {
			return nil, fmt.Errorf("%w: account %d", err, i)
		}
	}

	return accounts, nil
}
