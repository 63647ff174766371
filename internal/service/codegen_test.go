package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codeCheckerFunc func(ctx context.Context, code string) (bool, error)

func (f codeCheckerFunc) CodeExists(ctx context.Context, code string) (bool, error) {
	return f(ctx, code)
}

var codePattern = regexp.MustCompile(`^THRD-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{8}$`)

func TestGenerate_FormatAndUniqueness(t *testing.T) {
	gen := NewCodeGenerator(codeCheckerFunc(func(ctx context.Context, code string) (bool, error) {
		return false, nil
	}))

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := gen.Generate(context.Background())
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
		_, dup := seen[code]
		assert.False(t, dup, "code %s generated twice", code)
		seen[code] = struct{}{}
	}
}

func TestGenerate_RetriesOnCollision(t *testing.T) {
	checks := 0
	gen := NewCodeGenerator(codeCheckerFunc(func(ctx context.Context, code string) (bool, error) {
		checks++
		return checks <= 2, nil // first two candidates collide
	}))

	code, err := gen.Generate(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, checks)
	assert.Regexp(t, codePattern, code)
}

func TestGenerate_GivesUpWhenSpaceLooksExhausted(t *testing.T) {
	checks := 0
	gen := NewCodeGenerator(codeCheckerFunc(func(ctx context.Context, code string) (bool, error) {
		checks++
		return true, nil
	}))

	_, err := gen.Generate(context.Background())

	require.Error(t, err)
	assert.Equal(t, maxCodeAttempts, checks)
}

func TestGenerate_CheckerErrorSurfaces(t *testing.T) {
	gen := NewCodeGenerator(codeCheckerFunc(func(ctx context.Context, code string) (bool, error) {
		return false, errors.New("connection refused")
	}))

	_, err := gen.Generate(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "check code uniqueness")
}
