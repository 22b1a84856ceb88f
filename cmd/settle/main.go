package main

import (
	"context"
	"math/big"
	"os"
	"strings"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/omnivault/settle/internal/chains"
	"github.com/omnivault/settle/internal/erc4626"
	"github.com/omnivault/settle/internal/evm"
	"github.com/omnivault/settle/internal/graceful"
	"github.com/omnivault/settle/internal/oft"
	"github.com/omnivault/settle/internal/route"
	"github.com/omnivault/settle/internal/settle"
	"github.com/omnivault/settle/internal/util"
)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	cfg, err := newConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("invalid log level: %v", err)
	}
	logger.SetLevel(level)

	ctx, cancel := graceful.WithSignals(context.Background())
	defer cancel()

	hub := cfg.Hub.hub()
	src := cfg.Source.location()
	dst := cfg.Dest.location()

	// A source or destination that is the hub inherits the hub's
	// contract addresses so the operator configures them once.
	if src.EndpointID == hub.EndpointID {
		src = hub.Location
	}
	if dst.EndpointID == hub.EndpointID {
		dst = hub.Location
	}

	var spokes []chains.Location
	for _, loc := range []chains.Location{src, dst} {
		if loc.EndpointID != hub.EndpointID && (len(spokes) == 0 || spokes[0].EndpointID != loc.EndpointID) {
			spokes = append(spokes, loc)
		}
	}
	if _, err := chains.NewRegistry(hub, spokes); err != nil {
		logger.Fatalf("invalid location set: %v", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		logger.Fatalf("failed to parse private key: %v", err)
	}

	srcClient, err := ethclient.DialContext(ctx, src.RpcURL)
	if err != nil {
		logger.Fatalf("failed to connect to source RPC: %v", err)
	}

	hubClient := srcClient
	if src.EndpointID != hub.EndpointID {
		hubClient, err = ethclient.DialContext(ctx, hub.RpcURL)
		if err != nil {
			logger.Fatalf("failed to connect to hub RPC: %v", err)
		}
	}

	conversion := route.Conversion(cfg.Attempt.Conversion)

	transports := settle.NewTransports()
	registerTransports(transports, src, srcClient)
	registerTransports(transports, hub.Location, hubClient)

	txmgr, err := evm.NewTxManager(ctx, srcClient, key, logger)
	if err != nil {
		logger.Fatalf("failed to init tx manager: %v", err)
	}

	erc20 := evm.NewERC20(srcClient)
	approver := evm.NewApprover(erc20, txmgr, logger)
	vault := erc4626.NewVault(hubClient, hub.Vault, logger)
	quoter := oft.NewQuoter(logger)
	builder := settle.NewBuilder(logger, hub, transports, vault, quoter)

	spendToken := src.AssetToken
	if conversion == route.ConversionRedeem {
		spendToken = src.ShareToken
	}
	decimals, err := erc20.Decimals(ctx, spendToken)
	if err != nil {
		logger.Fatalf("failed to read decimals: %v", err)
	}
	amount, err := util.ToBaseUnits(cfg.Attempt.Amount, decimals)
	if err != nil {
		logger.Fatalf("invalid amount: %v", err)
	}

	var minAmount *big.Int
	if cfg.Attempt.MinAmount != "" {
		minAmount, err = parseMinAmount(ctx, cfg, conversion, src, dst, hubClient, srcClient)
		if err != nil {
			logger.Fatalf("invalid min amount: %v", err)
		}
	}

	refund := txmgr.From()
	if cfg.Attempt.Refund != "" {
		refund = ecommon.HexToAddress(cfg.Attempt.Refund)
	}

	logger.WithFields(logrus.Fields{
		"source":     src.Name,
		"dest":       dst.Name,
		"conversion": string(conversion),
		"amount":     util.FromBaseUnits(amount, decimals),
	}).Info("starting settlement")

	attempt := settle.NewAttempt(logger, hub, builder, quoter, approver, erc20, vault, txmgr)

	receipt, err := attempt.Run(ctx, settle.Request{
		Source:      src,
		Destination: dst,
		Conversion:  conversion,
		Params: settle.Params{
			Amount:      amount,
			Recipient:   ecommon.HexToAddress(cfg.Attempt.Recipient),
			Refund:      refund,
			SlippageBps: cfg.Attempt.SlippageBps,
			MinAmount:   minAmount,
			ReceiveGas:  cfg.Attempt.ReceiveGas,
			ComposeGas:  cfg.Attempt.ComposeGas,
		},
	})
	if err != nil {
		fields := logrus.Fields{"state": string(receipt.State)}
		if receipt.TxHash != (ecommon.Hash{}) {
			fields["tx_hash"] = receipt.TxHash.Hex()
		}
		logger.WithFields(fields).Fatalf("settlement failed: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"state":        string(receipt.State),
		"tx_hash":      receipt.TxHash.Hex(),
		"expected_out": receipt.Plan.ExpectedOut.String(),
	}).Info("done")
}

func registerTransports(transports *settle.Transports, loc chains.Location, rpc *ethclient.Client) {
	if loc.AssetOFT != (ecommon.Address{}) {
		transports.Register(loc.EndpointID, route.TokenAsset, oft.NewTransport(rpc, loc.AssetOFT))
	}
	if loc.ShareOFT != (ecommon.Address{}) {
		transports.Register(loc.EndpointID, route.TokenShare, oft.NewTransport(rpc, loc.ShareOFT))
	}
}

// parseMinAmount converts the explicit floor using the decimals of the
// token actually delivered on the destination.
func parseMinAmount(
	ctx context.Context,
	cfg config,
	conversion route.Conversion,
	src, dst chains.Location,
	hubClient, srcClient *ethclient.Client,
) (*big.Int, error) {
	outToken := dst.AssetToken
	if conversion == route.ConversionDeposit {
		outToken = dst.ShareToken
	}

	dstClient := srcClient
	switch dst.EndpointID {
	case src.EndpointID:
	case cfg.Hub.Eid:
		dstClient = hubClient
	default:
		var err error
		dstClient, err = ethclient.DialContext(ctx, dst.RpcURL)
		if err != nil {
			return nil, err
		}
	}

	decimals, err := evm.NewERC20(dstClient).Decimals(ctx, outToken)
	if err != nil {
		return nil, err
	}
	return util.ToBaseUnits(cfg.Attempt.MinAmount, decimals)
}
