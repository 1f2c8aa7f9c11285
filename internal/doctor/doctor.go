// Package doctor runs environment checks for the configured backend.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Yates-Labs/memctx/internal/config"
)

// Check names
const (
	CheckCLI             = "memsearch_cli"
	CheckEmbeddingKey    = "embedding_api_key"
	CheckMemoryDirectory = "memory_directory_writable"
)

// CLI reports whether the memsearch CLI answers
type CLI interface {
	Available(ctx context.Context) bool
}

// Check is the outcome of one diagnostic
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

// Report is the outcome of every diagnostic
type Report struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

// Run checks the CLI, the embedding key and the memory directory. A nil
// cli marks the CLI as missing.
func Run(ctx context.Context, cfg *config.Config, cli CLI) Report {
	checks := []Check{
		checkCLI(ctx, cfg, cli),
		checkEmbeddingKey(cfg),
		checkWritable(cfg.MemoryDirectory),
	}

	report := Report{OK: true, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			report.OK = false
		}
	}
	return report
}

func checkCLI(ctx context.Context, cfg *config.Config, cli CLI) Check {
	c := Check{Name: CheckCLI}
	if cli != nil && cli.Available(ctx) {
		c.OK = true
		c.Detail = fmt.Sprintf("%s CLI found", cfg.Memsearch.Binary)
		return c
	}
	if cfg.Backend != config.BackendMemsearch {
		c.OK = true
		c.Detail = fmt.Sprintf("memsearch CLI not found; not required by the %s backend", cfg.Backend)
		return c
	}
	c.Detail = fmt.Sprintf("%s CLI not found in PATH", cfg.Memsearch.Binary)
	c.Fix = "Install with: pip install memsearch, or set MEMSEARCH_BIN to the binary"
	return c
}

func checkEmbeddingKey(cfg *config.Config) Check {
	c := Check{Name: CheckEmbeddingKey}
	required, set := cfg.EmbeddingKeyRequired()
	switch {
	case !required:
		c.OK = true
		c.Detail = fmt.Sprintf("backend %s (provider %s) needs no embedding API key", cfg.Backend, cfg.Memsearch.EmbeddingProvider)
	case set:
		c.OK = true
		c.Detail = fmt.Sprintf("embedding API key is set for backend %s", cfg.Backend)
	default:
		c.Detail = fmt.Sprintf("backend %s needs an embedding API key", cfg.Backend)
		c.Fix = "Set OPENAI_API_KEY, or embeddingApiKey in the memsearch block of opencode.json"
	}
	return c
}

// checkWritable creates dir when missing and writes a scratch file into it.
func checkWritable(dir string) Check {
	c := Check{Name: CheckMemoryDirectory}
	fail := func(err error) Check {
		c.Detail = fmt.Sprintf("memory directory %s is not writable: %v", dir, err)
		c.Fix = "Make the directory writable by the current user or change memoryDirectory"
		return c
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}
	f, err := os.CreateTemp(dir, ".memctx_write_test")
	if err != nil {
		return fail(err)
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return fail(err)
	}

	c.OK = true
	c.Detail = fmt.Sprintf("memory directory %s is writable", filepath.Clean(dir))
	return c
}
