package main

import (
	"context"
	"fmt"
)

// Version is set by the linker via -ldflags "-X main.Version=...", and left
// at "dev" for unreleased builds.
var Version = "dev"

func version(ctx context.Context, args []string) error {
	fmt.Println(Version)
	return nil
}
