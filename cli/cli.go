package cli

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/sokinpui/sandpatch/internal/config"
)

// Config holds all the command-line flag values.
type Config struct {
	Root         string
	ConfigFile   string
	Rewrite      string
	DryRun       bool
	OutputFixed  bool
	Undo         bool
	Redo         bool
	Serve        string
	APIKey       string
	TrackOffsets bool
	Nvim         bool
	NoAnimation  bool
	Files        []string
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags(args []string) (*Config, error) {
	cfg := &Config{}
	flags := pflag.NewFlagSet("sandpatch", pflag.ContinueOnError)

	flags.StringVarP(&cfg.Root, "root", "C", "", "Sandbox root directory (default: config file root, then the working directory).")
	flags.StringVar(&cfg.ConfigFile, "config", config.DefaultFile, "Path to the YAML config file.")
	flags.StringVarP(&cfg.Rewrite, "rewrite", "w", "", "Replace PATH with the input verbatim instead of applying a patch.")
	flags.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Print the resulting diff without writing anything.")
	flags.BoolVarP(&cfg.OutputFixed, "output-fixed", "o", false, "Print the patch with hunk headers realigned to the current files.")
	flags.StringVar(&cfg.Serve, "serve", "", "Serve the HTTP API on ADDR (e.g. 127.0.0.1:7878).")
	flags.StringVar(&cfg.APIKey, "api-key", "", "Require this key on API requests (with --serve).")
	flags.BoolVar(&cfg.TrackOffsets, "track-offsets", false, "Shift later hunks by the line count change of earlier ones.")
	flags.BoolVar(&cfg.Nvim, "nvim", false, "Reload changed files in the Neovim at $NVIM_LISTEN_ADDRESS.")
	flags.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable loading spinner and progress updates.")

	// Mutually exclusive history group
	flags.BoolVarP(&cfg.Undo, "undo", "u", false, "Undo the last run.")
	flags.BoolVarP(&cfg.Redo, "redo", "r", false, "Redo the last undone run.")

	flags.Usage = func() {
		fmt.Println("Usage: sandpatch [flags] [patch-file...]")
		fmt.Println("\nApply patches from files, stdin (pipe) or the clipboard to files under a sandbox root.")
		fmt.Println("\nExample: pbpaste | sandpatch -C ./project")
		fmt.Println("\nFlags:")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	cfg.Files = flags.Args()

	if cfg.Undo && cfg.Redo {
		return nil, fmt.Errorf("error: --undo and --redo are mutually exclusive")
	}
	if cfg.Rewrite != "" && len(cfg.Files) > 1 {
		return nil, fmt.Errorf("error: --rewrite takes at most one input file")
	}
	if cfg.Serve != "" && (cfg.Undo || cfg.Redo || cfg.DryRun || cfg.OutputFixed || cfg.Rewrite != "") {
		return nil, fmt.Errorf("error: --serve cannot be combined with other modes")
	}
	return cfg, nil
}

// PrintsToStdout reports whether the selected mode writes its result to
// stdout, where a TUI would get in the way.
func (c *Config) PrintsToStdout() bool {
	return c.DryRun || c.OutputFixed
}
