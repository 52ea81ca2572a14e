// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"encoding/hex"
)

// BytesToHex converts bytes to a hex string with 0x prefix. Used to log the raw
// discriminator of an instruction that the marketplace decoder didn't recognize.
func BytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
