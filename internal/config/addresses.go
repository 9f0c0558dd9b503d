package config

import (
	"os"
	"strings"
	"sync"
)

// DexAddresses holds network-specific DEX contract addresses.
type DexAddresses struct {
	Factory string
	Router  string
}

var (
	addresses     *DexAddresses
	addressesOnce sync.Once
)

var mainnetAddresses = DexAddresses{
	Factory: "zig15z3pwkzv08fwfh8644aqmsdzfl83xcz936pyy8qzfjgqrwrnjn2s065dxx",
	Router:  "zig1g00t6pxg3xn8pk02wrslsrwmxarnrgwq6fr4la6n6qlrmpc5rc7qmzafcv",
}

var testnetAddresses = DexAddresses{
	Factory: "zig1mdkkse83dx8pw4h3rzs8ayc2rxsnwr0a9nnxjn4rmvcrs2y3tzyqfztupr",
	Router:  "zig1z63fjxunnnvp92r0qt07jh7mm6wzhmr4vh6y0p0wvzkucgvs086qc8rqq6",
}

// Addr returns the DEX contract addresses for the configured network.
// Reads ZIG_NETWORK on first call ("testnet" or "mainnet", default
// "mainnet"); FACTORY_ADDR and ROUTER_ADDR override individual entries.
func Addr() *DexAddresses {
	addressesOnce.Do(func() {
		var a DexAddresses
		switch Network() {
		case "testnet":
			a = testnetAddresses
		default:
			a = mainnetAddresses
		}
		if v := strings.TrimSpace(os.Getenv("FACTORY_ADDR")); v != "" {
			a.Factory = v
		}
		if v := strings.TrimSpace(os.Getenv("ROUTER_ADDR")); v != "" {
			a.Router = v
		}
		addresses = &a
	})
	return addresses
}

// Network returns "testnet" or "mainnet" based on the ZIG_NETWORK env var.
func Network() string {
	network := strings.TrimSpace(strings.ToLower(os.Getenv("ZIG_NETWORK")))
	if network == "testnet" {
		return "testnet"
	}
	return "mainnet"
}
