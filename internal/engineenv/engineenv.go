// Package engineenv captures details about the execengine environment, such
// as the default root directory used for scripts and job logs when a caller
// does not provide one explicitly.
package engineenv

import "os"

// Root is the root directory under which the engine places scripts and job
// logs by default.
var Root = findRoot()

func findRoot() string {
	if env := os.Getenv("EXECENGINE_ROOT"); env != "" {
		return env
	}

	// TODO: find the dominating .execengine directory, if any, the way
	// distri walks up for a DISTRIROOT.

	return os.ExpandEnv("$HOME/.execengine") // default
}
