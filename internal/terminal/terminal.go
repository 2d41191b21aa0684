// Package terminal decides whether log output goes to an interactive terminal
// and whether that terminal should receive ANSI colors.
package terminal

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ciEnvVars contains environment variables set by common CI systems.
var ciEnvVars = []string{
	"CI",
	"CONTINUOUS_INTEGRATION",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"BUILDKITE",
	"TF_BUILD",
}

// colorTerminals lists TERM values (or prefixes) known to support basic colors.
var colorTerminals = []string{
	"xterm",
	"screen",
	"tmux",
	"rxvt",
	"vt100",
	"vt220",
	"ansi",
	"linux",
}

// Options carries command line overrides. Zero value means auto-detect.
type Options struct {
	ForceInteractive    bool
	ForceNonInteractive bool
	ForceColor          bool
	DisableColor        bool
}

// Capabilities is the result of terminal detection.
type Capabilities struct {
	Interactive bool
	Color       bool
}

// Environment abstracts the process environment so detection can be tested.
type Environment interface {
	LookupEnv(key string) (string, bool)
	IsTerminal(fd int) bool
}

type processEnv struct{}

func (processEnv) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

func (processEnv) IsTerminal(fd int) bool { return fd >= 0 && term.IsTerminal(fd) }

// Detect inspects file descriptor fd and the environment of the current
// process. A negative fd is never a terminal.
func Detect(fd int, opts Options) Capabilities {
	return DetectWith(processEnv{}, fd, opts)
}

// DetectWith runs detection against env for the given file descriptor.
//
// Interactive priority: command line, CI variables, isatty.
// Color priority: command line, CLICOLOR_FORCE, NO_COLOR, CLICOLOR
// (interactive only), TERM.
func DetectWith(env Environment, fd int, opts Options) Capabilities {
	caps := Capabilities{Interactive: isInteractive(env, fd, opts)}

	switch {
	case opts.ForceColor:
		caps.Color = true
	case opts.DisableColor:
		caps.Color = false
	case truthy(env, "CLICOLOR_FORCE"):
		caps.Color = true
	default:
		if _, noColor := env.LookupEnv("NO_COLOR"); noColor {
			return caps
		}
		if !caps.Interactive || !supportsColorTerm(env) {
			return caps
		}
		if v, ok := env.LookupEnv("CLICOLOR"); ok && v != "" {
			caps.Color = isTruthy(v)
			return caps
		}
		caps.Color = true
	}
	return caps
}

func isInteractive(env Environment, fd int, opts Options) bool {
	if opts.ForceInteractive {
		return true
	}
	if opts.ForceNonInteractive {
		return false
	}
	for _, key := range ciEnvVars {
		v, ok := env.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		// CI=false is not a CI environment
		if key == "CI" && !isTruthy(v) {
			continue
		}
		return false
	}
	return env.IsTerminal(fd)
}

func supportsColorTerm(env Environment) bool {
	v, _ := env.LookupEnv("TERM")
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || v == "dumb" {
		return false
	}
	for _, t := range colorTerminals {
		if v == t || strings.HasPrefix(v, t+"-") {
			return true
		}
	}
	return false
}

func truthy(env Environment, key string) bool {
	v, ok := env.LookupEnv(key)
	return ok && isTruthy(v)
}

// isTruthy accepts "1", "true" and "yes", case insensitive.
func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
