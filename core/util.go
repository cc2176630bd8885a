package core

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultCodeLen  = 8
	MaxCodeAttempts = 10
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanCode normalizes a user supplied class or student code.
func CleanCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// GenerateCode returns a random code of `length` uppercase alphanumeric characters.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLen
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// GenerateCodeFunc is the code generator used by GenerateUniqueCode.
var GenerateCodeFunc = GenerateCode // mockable

// GenerateUniqueCode draws codes until `exists` reports an unused one, at most MaxCodeAttempts times.
func GenerateUniqueCode(ctx context.Context, length int, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < MaxCodeAttempts; attempt++ {
		code, err := GenerateCodeFunc(length)
		if err != nil {
			return "", errors.Wrap(err, "generating code")
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "checking code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeGeneration
}
