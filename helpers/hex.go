package helpers

import (
	"encoding/hex"
	"strings"
)

// ParseHex ignores whitespace, so fixtures can be split per command: "02 000000 05 1a".
func ParseHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.Join(strings.Fields(s), ""))
}

func MustHex(s string) []byte {
	b, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return b
}
