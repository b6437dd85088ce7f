// Package config reads and normalises the YAML configuration file describing
// the SMPP target, message template and load parameters. Parsing lives
// outside the core driver; this package hands the core already-normalised
// values.
package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultBinds           = 1
	defaultMaxTPSPerBind   = 100
	defaultInflightPerBind = 64
)

// BindType selects whether a session binds as transmitter or transceiver.
type BindType string

const (
	BindTx  BindType = "tx"
	BindTrx BindType = "trx"
)

// Config is the root of the configuration file.
type Config struct {
	SMPP    SMPPConfig    `yaml:"smpp"`
	Message MessageConfig `yaml:"message"`
	Load    LoadConfig    `yaml:"load"`
}

// SMPPConfig describes the target SMSC and bind credentials.
type SMPPConfig struct {
	Host       string   `yaml:"host"`
	Port       uint16   `yaml:"port"`
	SystemID   string   `yaml:"system_id"`
	Password   string   `yaml:"password"`
	SystemType string   `yaml:"system_type"`
	BindType   BindType `yaml:"bind_type"`
}

// ConnectionURI is the host:port target formatted for the codec's connect call.
func (s SMPPConfig) ConnectionURI() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MessageConfig is the submit_sm template, before it is cloned per submission.
type MessageConfig struct {
	ServiceType     string `yaml:"service_type"`
	SourceAddr      string `yaml:"source_addr"`
	SourceTON       uint8  `yaml:"source_ton"`
	SourceNPI       uint8  `yaml:"source_npi"`
	DestinationAddr string `yaml:"destination_addr"`
	DestinationTON  uint8  `yaml:"destination_ton"`
	DestinationNPI  uint8  `yaml:"destination_npi"`
	Body            string `yaml:"body"`
	DataCoding      uint8  `yaml:"data_coding"`
	RequestDLR      bool   `yaml:"request_dlr"`
}

// LoadConfig is the throughput/concurrency parameters, after normalisation.
type LoadConfig struct {
	Binds           int    `yaml:"binds"`
	MaxTPSPerBind   uint32 `yaml:"max_tps_per_bind"`
	InflightPerBind int    `yaml:"inflight_per_bind"`
	MessagesCount   int64  `yaml:"messages_count"` // 0 means unbounded
}

// Load reads and parses the YAML file at path, then applies defaults.
//
// binds follows the "default when key is absent" rule: if the load.binds
// key is present in the file, even as 0, that value is kept — an explicit
// binds=0 is a deliberate no-traffic run. max_tps_per_bind and
// inflight_per_bind follow a stricter rule: any zero, whether from an
// absent key or an explicit 0, is replaced by its default, so the submit
// loop's unthrottled branch stays unreachable via configuration.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WithMessagef(err, "read config %s", path)
	}

	var cfg = Config{Load: LoadConfig{Binds: defaultBinds}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.WithMessage(err, "parse config")
	}

	if cfg.Load.MaxTPSPerBind == 0 {
		cfg.Load.MaxTPSPerBind = defaultMaxTPSPerBind
	}
	if cfg.Load.InflightPerBind == 0 {
		cfg.Load.InflightPerBind = defaultInflightPerBind
	}
	if cfg.SMPP.BindType == "" {
		cfg.SMPP.BindType = BindTrx
	}
	return cfg, nil
}
