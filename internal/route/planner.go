package route

import (
	"errors"
	"fmt"

	"github.com/omnivault/settle/internal/chains"
)

// Conversion is the value-conversion step requested on the hub.
type Conversion string

const (
	ConversionNone    Conversion = "none"
	ConversionDeposit Conversion = "deposit"
	ConversionRedeem  Conversion = "redeem"
)

// Token identifies which side of the vault a leg moves.
type Token string

const (
	TokenAsset Token = "asset"
	TokenShare Token = "share"
)

var ErrBadRoute = errors.New("invalid route request")

// Leg is one message-layer transfer between two locations.
type Leg struct {
	From chains.Location
	To   chains.Location

	// Token the leg moves; flips across the conversion point.
	Token Token

	// ToComposer marks a leg that lands on the hub's conversion
	// executor rather than on a wallet address.
	ToComposer bool
}

// Route is the planning outcome: zero, one or two legs, tagged with the
// conversion happening on the hub. LocalConversion marks the hub-origin
// case where the conversion is a local transaction executed before the
// hop, not part of any leg.
type Route struct {
	Conversion      Conversion
	LocalConversion bool
	Legs            []Leg
}

// Plan decides the route shape from identity comparisons alone. It is
// pure: no network access, deterministic, and total over every input
// not rejected as a configuration error.
func Plan(src chains.Location, hub chains.Hub, dst chains.Location, conversion Conversion) (Route, error) {
	switch conversion {
	case ConversionNone, ConversionDeposit, ConversionRedeem:
	default:
		return Route{}, fmt.Errorf("%w: unknown conversion kind %q", ErrBadRoute, conversion)
	}

	srcIsHub := src.EndpointID == hub.EndpointID
	dstIsHub := dst.EndpointID == hub.EndpointID

	switch {
	case srcIsHub && dstIsHub:
		if conversion != ConversionNone {
			return Route{}, fmt.Errorf(
				"%w: %s on the hub with hub destination needs no message hop, call the vault directly",
				ErrBadRoute, conversion,
			)
		}
		return Route{Conversion: ConversionNone}, nil

	case !srcIsHub && dstIsHub:
		return Route{
			Conversion: conversion,
			Legs: []Leg{
				{
					From:       src,
					To:         hub.Location,
					Token:      tokenBefore(conversion),
					ToComposer: conversion != ConversionNone,
				},
			},
		}, nil

	case srcIsHub && !dstIsHub:
		return Route{
			Conversion:      conversion,
			LocalConversion: conversion != ConversionNone,
			Legs: []Leg{
				{
					From:  hub.Location,
					To:    dst,
					Token: tokenAfter(conversion),
				},
			},
		}, nil

	default:
		return Route{
			Conversion: conversion,
			Legs: []Leg{
				{
					From:       src,
					To:         hub.Location,
					Token:      tokenBefore(conversion),
					ToComposer: true,
				},
				{
					From:  hub.Location,
					To:    dst,
					Token: tokenAfter(conversion),
				},
			},
		}, nil
	}
}

func tokenBefore(conversion Conversion) Token {
	if conversion == ConversionRedeem {
		return TokenShare
	}
	return TokenAsset
}

func tokenAfter(conversion Conversion) Token {
	if conversion == ConversionDeposit {
		return TokenShare
	}
	return TokenAsset
}
