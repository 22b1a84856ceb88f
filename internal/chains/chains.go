package chains

import (
	"fmt"

	ecommon "github.com/ethereum/go-ethereum/common"
)

// Location is one messaging endpoint the settlement can touch. The
// endpoint id is the messaging layer's identifier, not the EVM chain id.
type Location struct {
	Name       string
	EndpointID uint32
	RpcURL     string

	// AssetOFT moves the underlying asset, ShareOFT moves the vault
	// share token. On spokes these are the adapter contracts, on the
	// hub they may be the lockbox adapters colocated with the vault.
	AssetOFT ecommon.Address
	ShareOFT ecommon.Address

	// AssetToken and ShareToken are the ERC20s the adapters move. A
	// zero AssetToken marks the chain's native currency.
	AssetToken ecommon.Address
	ShareToken ecommon.Address
}

// Hub is the one location where deposit/redeem is possible.
type Hub struct {
	Location

	// Vault is the ERC4626 accounting contract, Composer the executor
	// that interprets compose payloads landing on the hub.
	Vault    ecommon.Address
	Composer ecommon.Address
}

type Registry struct {
	hub       Hub
	locations map[string]Location
}

func NewRegistry(hub Hub, spokes []Location) (*Registry, error) {
	locations := map[string]Location{
		hub.Name: hub.Location,
	}
	for _, loc := range spokes {
		if _, ok := locations[loc.Name]; ok {
			return nil, fmt.Errorf("duplicate location: %s", loc.Name)
		}
		locations[loc.Name] = loc
	}
	return &Registry{
		hub:       hub,
		locations: locations,
	}, nil
}

func (r *Registry) Hub() Hub {
	return r.hub
}

func (r *Registry) Get(name string) (Location, error) {
	loc, ok := r.locations[name]
	if !ok {
		return Location{}, fmt.Errorf("failed to get location: %s", name)
	}
	return loc, nil
}

// IsHub reports whether the location is the hub endpoint.
func (r *Registry) IsHub(loc Location) bool {
	return loc.EndpointID == r.hub.EndpointID
}
