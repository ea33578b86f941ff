package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/rxrank/internal/dagger"
)

// CheckTidy fails when "go mod tidy" would change go.mod or go.sum.
//
// +check
func (r *Rxrank) CheckTidy(ctx context.Context) (string, error) {
	return r.check(ctx, "go.mod and go.sum are tidy",
		"cp go.mod /tmp/go.mod && cp go.sum /tmp/go.sum && go mod tidy && "+
			"diff -u /tmp/go.mod go.mod && diff -u /tmp/go.sum go.sum")
}

// CheckFormat fails when any Go file outside the reference pack is not gofmt'd.
//
// +check
func (r *Rxrank) CheckFormat(ctx context.Context) (string, error) {
	return r.check(ctx, "sources are gofmt'd",
		`out=$(gofmt -l $(find . -name '*.go' -not -path './_examples/*' -not -path './.dagger/*')); `+
			`[ -z "$out" ] || { echo "$out"; exit 1; }`)
}

// CheckVet runs go vet over every package.
//
// +check
func (r *Rxrank) CheckVet(ctx context.Context) (string, error) {
	return r.check(ctx, "go vet is clean", "go vet ./...")
}

func (r *Rxrank) check(ctx context.Context, ok, script string) (string, error) {
	out, err := r.goContainer().
		WithExec([]string{"sh", "-c", script}).
		Stdout(ctx)

	var execErr *dagger.ExecError
	switch {
	case errors.As(err, &execErr):
		return "", fmt.Errorf("check failed: %s\n\n%s%s", ok, execErr.Stdout, execErr.Stderr)
	case err != nil:
		return "", err
	}
	return ok + "\n" + out, nil
}
