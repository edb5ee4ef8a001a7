package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jango-blockchained/cryptofolio/internal/entity"
)

const (
	defaultFiat            = "USD"
	defaultUser            = "default"
	defaultListen          = ":8085"
	defaultWalDir          = "./wal"
	defaultSyncInterval    = 5 * time.Minute
	defaultRefreshInterval = 10 * time.Minute
	defaultFetchTimeout    = 15 * time.Second
)

type Config struct {
	User            string
	Fiat            string
	Listen          string
	WalDir          string
	SyncInterval    time.Duration
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	Accounts        []entity.ExchangeAccount
	Ethereum        EthereumConfig
	Addresses       []AddressSeed
	Manual          []ManualSeed
	Rates           []entity.Rate
	Aliases         map[string]string
	Setup           bool
}

type EthereumConfig struct {
	RPCURL          string   `yaml:"rpc_url"`
	FallbackRPCURLs []string `yaml:"fallback_rpc_urls,omitempty"`
}

// AddressSeed registers an on-chain address on first boot.
type AddressSeed struct {
	Currency string `yaml:"currency"`
	Address  string `yaml:"address"`
}

// ManualSeed records a user-entered amount on first boot.
type ManualSeed struct {
	Currency string  `yaml:"currency"`
	Amount   float64 `yaml:"amount"`
}

type configTmp struct {
	User            string                   `yaml:"user,omitempty"`
	Fiat            string                   `yaml:"fiat,omitempty"`
	Listen          string                   `yaml:"listen,omitempty"`
	WalDir          string                   `yaml:"wal_dir,omitempty"`
	SyncInterval    string                   `yaml:"sync_interval,omitempty"`
	RefreshInterval string                   `yaml:"refresh_interval,omitempty"`
	FetchTimeout    string                   `yaml:"fetch_timeout,omitempty"`
	Accounts        []entity.ExchangeAccount `yaml:"accounts,omitempty"`
	Ethereum        EthereumConfig           `yaml:"ethereum,omitempty"`
	Addresses       []AddressSeed            `yaml:"addresses,omitempty"`
	Manual          []ManualSeed             `yaml:"manual,omitempty"`
	Rates           []entity.Rate            `yaml:"rates,omitempty"`
	Aliases         map[string]string        `yaml:"aliases,omitempty"`
}

// Get reads configuration from the yaml file passed via -config, falling
// back to defaults for anything omitted.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	setup := flag.Bool("setup", false, "run the interactive configuration wizard")
	flag.Parse()

	conf := defaults()
	conf.Setup = *setup
	if *configPath == "" {
		return conf, nil
	}

	f, err := os.ReadFile(*configPath)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	if tmp.User != "" {
		conf.User = tmp.User
	}
	if tmp.Fiat != "" {
		conf.Fiat = tmp.Fiat
	}
	if tmp.Listen != "" {
		conf.Listen = tmp.Listen
	}
	if tmp.WalDir != "" {
		conf.WalDir = tmp.WalDir
	}
	if conf.SyncInterval, err = interval(tmp.SyncInterval, conf.SyncInterval); err != nil {
		return Config{}, fmt.Errorf("invalid sync_interval: %w", err)
	}
	if conf.RefreshInterval, err = interval(tmp.RefreshInterval, conf.RefreshInterval); err != nil {
		return Config{}, fmt.Errorf("invalid refresh_interval: %w", err)
	}
	if conf.FetchTimeout, err = interval(tmp.FetchTimeout, conf.FetchTimeout); err != nil {
		return Config{}, fmt.Errorf("invalid fetch_timeout: %w", err)
	}

	conf.Accounts = tmp.Accounts
	conf.Ethereum = tmp.Ethereum
	conf.Addresses = tmp.Addresses
	conf.Manual = tmp.Manual
	conf.Rates = tmp.Rates
	if tmp.Aliases != nil {
		conf.Aliases = tmp.Aliases
	}

	for i, account := range conf.Accounts {
		if account.ID == "" {
			return Config{}, fmt.Errorf("account #%d has no id", i)
		}
		if !account.Platform.Valid() {
			return Config{}, fmt.Errorf("account %s: unsupported platform %q", account.ID, account.Platform)
		}
		if account.User == "" {
			conf.Accounts[i].User = conf.User
		}
	}

	return conf, nil
}

func defaults() Config {
	return Config{
		User:            defaultUser,
		Fiat:            defaultFiat,
		Listen:          defaultListen,
		WalDir:          defaultWalDir,
		SyncInterval:    defaultSyncInterval,
		RefreshInterval: defaultRefreshInterval,
		FetchTimeout:    defaultFetchTimeout,
	}
}

func interval(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
