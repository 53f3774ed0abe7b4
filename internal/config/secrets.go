package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/api3dao/airnode-deployer/internal/wallet"
)

// Wallet variables read from secrets.env.
const (
	WalletAddressVar = "AIRNODE_WALLET_ADDRESS"
	WalletXpubVar    = "AIRNODE_WALLET_XPUB"
)

// LoadSecrets parses a secrets.env file. It returns the parsed variables and
// the raw file content.
func LoadSecrets(path string) (map[string]string, []byte, error) {
	// #nosec G304
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	secrets, err := godotenv.UnmarshalBytes(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse secrets file %s: %w", path, err)
	}
	return secrets, raw, nil
}

// Wallet holds the Airnode wallet identity injected through secrets.
type Wallet struct {
	Address string
	Xpub    string
}

// WalletFromSecrets reads and validates the Airnode wallet from secrets.
// The address is returned in its checksummed form.
func WalletFromSecrets(secrets map[string]string) (Wallet, error) {
	address := secrets[WalletAddressVar]
	if address == "" {
		return Wallet{}, fmt.Errorf("%s is not set in secrets", WalletAddressVar)
	}
	if err := wallet.ValidateAddress(address); err != nil {
		return Wallet{}, fmt.Errorf("%s: %w", WalletAddressVar, err)
	}
	return Wallet{Address: wallet.ChecksumAddress(address), Xpub: secrets[WalletXpubVar]}, nil
}
