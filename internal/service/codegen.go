package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// codePrefix brands every generated coupon code.
const codePrefix = "THRD-"

// codeAlphabet omits 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeBodyLength = 8

// maxCodeAttempts bounds the uniqueness loop. With a 32-char alphabet and
// 8 positions a collision is astronomically unlikely, but the check must
// exist and loop, not assume.
const maxCodeAttempts = 10

// CodeChecker reports whether a code has ever been issued to any user.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator produces globally-unique brand-prefixed coupon codes.
type CodeGenerator struct {
	checker CodeChecker
}

// NewCodeGenerator creates a CodeGenerator backed by the given checker.
func NewCodeGenerator(checker CodeChecker) *CodeGenerator {
	return &CodeGenerator{checker: checker}
}

// Generate returns a fresh code of the form THRD-XXXXXXXX, retrying until
// the checker has never seen it.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("generate code body: %w", err)
		}

		exists, err := g.checker.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no unique code after %d attempts", maxCodeAttempts)
}

func randomCode() (string, error) {
	body := make([]byte, codeBodyLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range body {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		body[i] = codeAlphabet[n.Int64()]
	}
	return codePrefix + string(body), nil
}
