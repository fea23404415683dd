package engine

import (
	"os/exec"
	"sort"
)

// knownEngines lists every adapter the factory can build
var knownEngines = []string{"claude", "codex", "gemini"}

// Factory resolves engine names to adapters, probing the PATH for
// installed binaries. Binary paths can be overridden per engine, which
// also bypasses the PATH probe for that engine.
type Factory struct {
	bins     map[string]string // engine name -> binary override
	lookPath func(string) (string, error)
}

// NewFactory creates a factory with the given binary overrides
func NewFactory(bins map[string]string) *Factory {
	return &Factory{bins: bins, lookPath: exec.LookPath}
}

// Resolve returns the adapter for the named engine.
// An unknown or uninstalled engine yields UnavailableError carrying the
// engines that are installed.
func (f *Factory) Resolve(name string) (Engine, error) {
	if !f.available(name) {
		return nil, UnavailableError{Requested: name, Alternatives: f.Available()}
	}

	bin := f.bins[name]
	switch name {
	case "claude":
		return NewClaudeCLI(bin), nil
	case "codex":
		return NewCodexCLI(bin), nil
	case "gemini":
		return NewGeminiCLI(bin), nil
	default:
		return nil, UnavailableError{Requested: name, Alternatives: f.Available()}
	}
}

// Available returns the installed engines, sorted
func (f *Factory) Available() []string {
	var names []string
	for _, name := range knownEngines {
		if f.available(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (f *Factory) available(name string) bool {
	known := false
	for _, n := range knownEngines {
		if n == name {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	if bin, ok := f.bins[name]; ok && bin != "" {
		return true
	}
	_, err := f.lookPath(name)
	return err == nil
}
