package main

import (
	"fmt"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"

	"github.com/omnivault/settle/internal/chains"
	"github.com/omnivault/settle/internal/route"
)

type config struct {
	PrivateKey string `envconfig:"PRIVATE_KEY" required:"true"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	Hub     hubConfig
	Source  locationConfig
	Dest    locationConfig
	Attempt attemptConfig
}

type locationConfig struct {
	Name       string `required:"true"`
	Eid        uint32 `required:"true"`
	RpcURL     string `envconfig:"RPC_URL" required:"true"`
	AssetOFT   string `envconfig:"ASSET_OFT"`
	ShareOFT   string `envconfig:"SHARE_OFT"`
	AssetToken string `envconfig:"ASSET_TOKEN"`
	ShareToken string `envconfig:"SHARE_TOKEN"`
}

type hubConfig struct {
	locationConfig
	Vault    string `required:"true"`
	Composer string `required:"true"`
}

type attemptConfig struct {
	Amount      string `required:"true"`
	Recipient   string `required:"true"`
	Refund      string
	Conversion  string `default:"none"`
	SlippageBps uint64 `envconfig:"SLIPPAGE_BPS" default:"50"`
	MinAmount   string `envconfig:"MIN_AMOUNT"`
	ReceiveGas  uint64 `envconfig:"RECEIVE_GAS" default:"200000"`
	ComposeGas  uint64 `envconfig:"COMPOSE_GAS" default:"400000"`
}

func newConfig() (config, error) {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	for _, check := range []struct {
		field string
		value string
		want  addressKind
	}{
		{"HUB_VAULT", c.Hub.Vault, addressRequired},
		{"HUB_COMPOSER", c.Hub.Composer, addressRequired},
		{"ATTEMPT_RECIPIENT", c.Attempt.Recipient, addressRequired},
		{"ATTEMPT_REFUND", c.Attempt.Refund, addressOptional},
		{"HUB_ASSET_OFT", c.Hub.AssetOFT, addressOptional},
		{"HUB_SHARE_OFT", c.Hub.ShareOFT, addressOptional},
		{"SOURCE_ASSET_OFT", c.Source.AssetOFT, addressOptional},
		{"SOURCE_SHARE_OFT", c.Source.ShareOFT, addressOptional},
	} {
		if err := checkAddress(check.field, check.value, check.want); err != nil {
			return err
		}
	}

	switch route.Conversion(c.Attempt.Conversion) {
	case route.ConversionNone, route.ConversionDeposit, route.ConversionRedeem:
	default:
		return fmt.Errorf("invalid ATTEMPT_CONVERSION: %q", c.Attempt.Conversion)
	}

	if c.Attempt.SlippageBps > 10_000 {
		return fmt.Errorf("invalid ATTEMPT_SLIPPAGE_BPS: %d, must be in [0, 10000]", c.Attempt.SlippageBps)
	}
	return nil
}

type addressKind int

const (
	addressRequired addressKind = iota
	addressOptional
)

func checkAddress(field, value string, kind addressKind) error {
	if value == "" {
		if kind == addressRequired {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	if !ecommon.IsHexAddress(value) {
		return fmt.Errorf("%s is not a valid address: %q", field, value)
	}
	return nil
}

func (l locationConfig) location() chains.Location {
	return chains.Location{
		Name:       l.Name,
		EndpointID: l.Eid,
		RpcURL:     l.RpcURL,
		AssetOFT:   ecommon.HexToAddress(l.AssetOFT),
		ShareOFT:   ecommon.HexToAddress(l.ShareOFT),
		AssetToken: ecommon.HexToAddress(l.AssetToken),
		ShareToken: ecommon.HexToAddress(l.ShareToken),
	}
}

func (h hubConfig) hub() chains.Hub {
	return chains.Hub{
		Location: h.locationConfig.location(),
		Vault:    ecommon.HexToAddress(h.Vault),
		Composer: ecommon.HexToAddress(h.Composer),
	}
}
