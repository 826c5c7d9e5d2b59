package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"tlog.app/go/tlog"

	"github.com/raymyers/prevc/pkg/config"
	"github.com/raymyers/prevc/pkg/frontend"
	"github.com/raymyers/prevc/pkg/pipeline"
)

var version = "0.1.0"

// Dump flags for listing intermediate forms
var (
	dIMC    bool
	dLin    bool
	dAsm    bool
	dLive   bool
	dRegAll bool
)

var (
	outputFile string
	configFile string
	runProgram bool
	flagConfig = config.Default()
)

// exitError carries the exit code of an interpreted program.
type exitError struct {
	code int64
}

func (e *exitError) Error() string {
	return fmt.Sprintf("program exited with code %d", e.code)
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Accept single-dash dump flags such as -dasm
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return int(exit.code & 0xFF)
	}

	fmt.Fprintf(os.Stderr, "prevc: %v\n", err)
	return 1
}

// dumpFlagNames lists the flags that also accept single-dash style
var dumpFlagNames = []string{"dimc", "dlin", "dasm", "dlive", "dregall"}

// normalizeFlags converts single-dash dump flags like -dasm to --dasm
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = arg
		for _, name := range dumpFlagNames {
			if arg == "-"+name {
				result[i] = "--" + name
				break
			}
		}
	}
	return result
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "prevc [file]",
		Short: "prevc is a compiler back end producing MMIX assembly",
		Long: `prevc translates a resolved program, given as YAML, into
intermediate code, selects MMIX instructions, allocates registers
and writes MMIXAL.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			return compileFile(args[0], cfg, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVarP(&dIMC, "dimc", "", false, "Dump intermediate code trees")
	rootCmd.Flags().BoolVarP(&dLin, "dlin", "", false, "Dump linearized intermediate code")
	rootCmd.Flags().BoolVarP(&dAsm, "dasm", "", false, "Dump selected instructions")
	rootCmd.Flags().BoolVarP(&dLive, "dlive", "", false, "Dump selected instructions with liveness")
	rootCmd.Flags().BoolVarP(&dRegAll, "dregall", "", false, "Dump instructions after register allocation")

	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write assembly to `file` (- for stdout)")
	rootCmd.Flags().StringVar(&configFile, "config", "", "Read configuration from a YAML or TOML `file`")
	rootCmd.Flags().BoolVar(&runProgram, "run", false, "Interpret the program instead of writing assembly")

	flagConfig = config.Default()
	flagConfig.BindFlags(rootCmd.Flags())

	return rootCmd
}

// loadConfig merges defaults, the config file, the environment and the
// command line, in increasing precedence.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	cfg.ApplyFlags(cmd.Flags(), flagConfig)

	return cfg, cfg.Validate()
}

func compileFile(filename string, cfg config.Config, out, errOut io.Writer) error {
	ctx := context.Background()
	if cfg.Verbose {
		ctx = tlog.ContextWithSpan(ctx, tlog.New(tlog.NewConsoleWriter(errOut, tlog.LstdFlags)).Root())
	}

	prog, tables, err := frontend.LoadFile(filename)
	if err != nil {
		return err
	}

	opts := pipeline.NewOptions(cfg)
	opts.Listings = listings(out)

	res, err := pipeline.Compile(ctx, prog, tables, opts)
	if err != nil {
		return err
	}

	if runProgram {
		code, err := res.Run(os.Stdin, out)
		if err != nil {
			return err
		}
		if code != 0 {
			return &exitError{code: code}
		}
		return nil
	}

	// Render first so that no file is left behind on failure
	var buf bytes.Buffer
	if err := res.WriteAssembly(&buf); err != nil {
		return err
	}

	name := outputFile
	if name == "" {
		name = assemblyOutputFilename(filename)
	}
	if name == "-" {
		_, err := buf.WriteTo(out)
		return err
	}

	return os.WriteFile(name, buf.Bytes(), 0o644)
}

func listings(out io.Writer) pipeline.Listings {
	var l pipeline.Listings
	if dIMC {
		l.IMC = out
	}
	if dLin {
		l.Lin = out
	}
	if dAsm {
		l.Asm = out
	}
	if dLive {
		l.Live = out
	}
	if dRegAll {
		l.RegAll = out
	}
	return l
}

// assemblyOutputFilename returns the default output: input.yaml -> input.mms
func assemblyOutputFilename(filename string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		if strings.HasSuffix(filename, ext) {
			return filename[:len(filename)-len(ext)] + ".mms"
		}
	}
	return filename + ".mms"
}
