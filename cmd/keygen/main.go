// Command keygen provisions the encrypted wallet file the copy trader loads
// at startup. It reads the raw private key and password from the environment
// (never from flags, which leak into shell history and process listings),
// seals the key with PBKDF2 + AES-256-GCM, and writes the key file.
//
// Usage:
//
//	POLYCOPY_WALLET_PRIVATE_KEY=0x... POLYCOPY_WALLET_KEY_PASSWORD=... keygen -out wallet.key.json
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/alanyoungcy/polycopy/internal/crypto"
)

func main() {
	out := flag.String("out", "wallet.key.json", "path to write the encrypted key file")
	flag.Parse()

	// Optional .env, same as the trader's config loader.
	_ = godotenv.Load()

	key := os.Getenv("POLYCOPY_WALLET_PRIVATE_KEY")
	password := os.Getenv("POLYCOPY_WALLET_KEY_PASSWORD")
	if key == "" || password == "" {
		fmt.Fprintln(os.Stderr, "keygen: POLYCOPY_WALLET_PRIVATE_KEY and POLYCOPY_WALLET_KEY_PASSWORD must be set")
		os.Exit(1)
	}

	blob, err := crypto.EncryptKey(key, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, blob, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "keygen: writing %s: %v\n", *out, err)
		os.Exit(1)
	}

	// Verify the round trip before declaring the file usable.
	if _, err := crypto.LoadKey(crypto.KeyConfig{EncryptedKeyPath: *out, KeyPassword: password}); err != nil {
		fmt.Fprintf(os.Stderr, "keygen: verification failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("encrypted key written to %s\n", *out)
}
