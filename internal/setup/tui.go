package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

type accountYaml struct {
	ID       string `yaml:"id"`
	Platform string `yaml:"platform"`
	Key      string `yaml:"key"`
	Secret   string `yaml:"secret,omitempty"`
}

type addressYaml struct {
	Currency string `yaml:"currency"`
	Address  string `yaml:"address"`
}

type configYaml struct {
	User         string        `yaml:"user"`
	Fiat         string        `yaml:"fiat"`
	Listen       string        `yaml:"listen"`
	SyncInterval string        `yaml:"sync_interval"`
	Accounts     []accountYaml `yaml:"accounts,omitempty"`
	Ethereum     *ethYaml      `yaml:"ethereum,omitempty"`
	Addresses    []addressYaml `yaml:"addresses,omitempty"`
}

type ethYaml struct {
	RPCURL string `yaml:"rpc_url"`
}

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		fiat            string
		syncIntervalStr string
		listen          string
		accounts        []accountYaml
		addresses       []addressYaml
		rpcURL          string
		confirm         bool
	)

	// defaults
	fiat = "USD"
	syncIntervalStr = "5m"
	listen = ":8085"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("CRYPTOFOLIO CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Track all your balances in one place.\n"))

	// fiat + timing
	fmt.Println(stepStyle.Render("STEP 1: VALUATION"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default fiat currency").
				Options(
					huh.NewOption("US Dollar (USD)", "USD"),
					huh.NewOption("Euro (EUR)", "EUR"),
					huh.NewOption("British Pound (GBP)", "GBP"),
				).
				Value(&fiat),
			huh.NewInput().
				Title("Sync Interval").
				Description("Duration string (e.g. 30s, 1m, 5m)").
				Value(&syncIntervalStr).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewInput().
				Title("Listen Address").
				Description("Address of the web UI (e.g. :8085)").
				Value(&listen),
		),
	).Run()
	if err != nil {
		return err
	}

	// exchange accounts
	for {
		var addAccount bool
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("CRYPTOFOLIO CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(fmt.Sprintf("STEP 2: EXCHANGE ACCOUNTS (%d added)", len(accounts))))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Add an exchange account?").
					Value(&addAccount),
			),
		).Run()
		if err != nil {
			return err
		}
		if !addAccount {
			break
		}

		account := accountYaml{}
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Account ID").
					Description("Any unique label (e.g. binance-main)").
					Value(&account.ID).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("id cannot be empty")
						}
						return nil
					}),
				huh.NewSelect[string]().
					Title("Platform").
					Options(
						huh.NewOption("Binance", "binance"),
						huh.NewOption("Bybit", "bybit"),
						huh.NewOption("Hyperliquid", "hyperliquid"),
					).
					Value(&account.Platform),
				huh.NewInput().
					Title("API Key").
					Description("For Hyperliquid: the hex private key").
					Value(&account.Key),
				huh.NewInput().
					Title("API Secret").
					Description("Leave empty for Hyperliquid").
					Value(&account.Secret),
			),
		).Run()
		if err != nil {
			return err
		}
		accounts = append(accounts, account)
	}

	// on-chain addresses
	for {
		var addAddress bool
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("CRYPTOFOLIO CONFIG WIZARD"))
		fmt.Println(stepStyle.Render(fmt.Sprintf("STEP 3: ON-CHAIN ADDRESSES (%d added)", len(addresses))))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Track an on-chain address?").
					Value(&addAddress),
			),
		).Run()
		if err != nil {
			return err
		}
		if !addAddress {
			break
		}

		address := addressYaml{Currency: "ETH"}
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Currency").
					Value(&address.Currency),
				huh.NewInput().
					Title("Address").
					Value(&address.Address).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("address cannot be empty")
						}
						return nil
					}),
			),
		).Run()
		if err != nil {
			return err
		}
		addresses = append(addresses, address)
	}

	if len(addresses) > 0 {
		rpcURL = "https://eth.llamarpc.com"
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Ethereum RPC URL").
					Value(&rpcURL),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	// confirm and write
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CRYPTOFOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: SAVE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write config.yaml?").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("aborted, nothing written"))
		return nil
	}

	conf := configYaml{
		User:         "default",
		Fiat:         fiat,
		Listen:       listen,
		SyncInterval: syncIntervalStr,
		Accounts:     accounts,
		Addresses:    addresses,
	}
	if rpcURL != "" {
		conf.Ethereum = &ethYaml{RPCURL: rpcURL}
	}

	out, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	if err := os.WriteFile("config.yaml", out, 0o644); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("config.yaml written, start with: cryptofolio -config config.yaml"))
	return nil
}
