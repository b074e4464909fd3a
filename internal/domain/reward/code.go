package reward

import (
	"crypto/rand"
	"strings"
)

// codeAlphabet leaves out 0, O, 1 and I so codes can be read aloud
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// GenerateCode returns PREFIX-XXXXXX with a random suffix
func GenerateCode(prefix string) (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		return string(buf), nil
	}
	return prefix + "-" + string(buf), nil
}
