package main

import (
	"context"
	"fmt"

	"dagger/simsearch/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// CheckLint runs golangci-lint with its default linters against the source.
func (s *Simsearch) CheckLint(ctx context.Context) (string, error) {
	return s.lintContainer().
		WithExec([]string{"golangci-lint", "run", "./..."}).
		Stdout(ctx)
}

// FixLint runs golangci-lint with --fix and returns the modified source.
func (s *Simsearch) FixLint(ctx context.Context) *dagger.Directory {
	return s.lintContainer().
		WithExec([]string{"golangci-lint", "run", "--fix", "./..."}).
		Directory("/src")
}

func (s *Simsearch) lintContainer() *dagger.Container {
	return s.goContainer().
		WithExec([]string{
			"go",
			"install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})
}
