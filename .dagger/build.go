package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/rxrank/internal/dagger"
)

// Build and return directory of go binaries for linux
func (r *Rxrank) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// CGO rules out cross-compiling to darwin from this container.
	goarches := []string{"amd64", "arm64"}

	outputs := dag.Directory()

	for _, goarch := range goarches {
		path := fmt.Sprintf("linux/%s/", goarch)

		build := r.goContainer().
			WithExec([]string{"apt-get", "install", "-y", "gcc-aarch64-linux-gnu"}).
			WithEnvVariable("GOOS", "linux").
			WithEnvVariable("GOARCH", goarch).
			WithEnvVariable("CC", compilerFor(goarch)).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/rxrank"}).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/rxrankapi"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

func compilerFor(goarch string) string {
	if goarch == "arm64" {
		return "aarch64-linux-gnu-gcc"
	}
	return "gcc"
}

// BuildRelease compiles versioned release binaries with embedded version info
func (r *Rxrank) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/rxrank/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/rxrank/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/rxrank/pkg/utils.Buildtime=%s'", buildtime),
	}

	return r.Build(ctx, strings.Join(ldflags, " "))
}
