// Package keys derives Substrate coldkey material from BIP-39 mnemonics:
// mnemonic generation and validation, sr25519 and ed25519 public keys from
// the substrate mini secret, and SS58 address encoding.
package keys
