package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"stackbad/pkg/asm"
	"stackbad/pkg/backend/irtext"
	"stackbad/pkg/backend/native"
	"stackbad/pkg/compiler"
	"stackbad/pkg/logger"
	"stackbad/pkg/utils"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCommand(viper.New(), os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// buildConfig is the resolved configuration of one build invocation.
type buildConfig struct {
	output string
	emit   string
	prune  bool
	jobs   int
}

// sourceError ties a compilation error to the file and text it came from so
// it can be rendered with a caret snippet.
type sourceError struct {
	path string
	src  string
	err  error
}

func (e *sourceError) Error() string { return fmt.Sprintf("%s: %v", e.path, e.err) }
func (e *sourceError) Unwrap() error { return e.err }

func newRootCommand(v *viper.Viper, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "stackbad",
		Short:         "Compile stackbad programs to native object files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetErr(stderr)

	v.SetEnvPrefix("STACKBAD")
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console, json)")
	mustBindPFlag(v, "log-level", root.PersistentFlags().Lookup("log-level"))
	mustBindPFlag(v, "log-format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(newBuildCommand(v, stderr), newAsmCommand(v, stderr))
	return root
}

func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func newLogger(v *viper.Viper, w io.Writer) (*zap.Logger, error) {
	cfg := logger.NewConfig()
	if err := cfg.Level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return nil, errors.Wrap(err, "log-level")
	}
	cfg.Format = v.GetString("log-format")
	return logger.New(w, cfg)
}

func newBuildCommand(v *viper.Viper, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [flags] file...",
		Short: "Compile source files to object files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(v, stderr)
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg := buildConfig{
				output: v.GetString("output"),
				emit:   v.GetString("emit"),
				prune:  v.GetBool("prune"),
				jobs:   v.GetInt("jobs"),
			}
			if cfg.output != "" && len(args) > 1 {
				return errors.New("--output requires exactly one input file")
			}
			if cfg.emit != "obj" && cfg.emit != "ir" {
				return errors.Errorf("unknown --emit value %q", cfg.emit)
			}

			err = buildAll(args, cfg, log)
			reportErrors(stderr, err)
			return err
		},
	}
	cmd.Flags().StringP("output", "o", "", "output path (default: input with extension replaced)")
	cmd.Flags().String("emit", "obj", "output kind: obj (native object) or ir (textual IR)")
	cmd.Flags().Bool("prune", false, "drop internal functions unreachable from external ones")
	cmd.Flags().Int("jobs", runtime.NumCPU(), "number of files compiled in parallel")
	for _, name := range []string{"output", "emit", "prune", "jobs"} {
		mustBindPFlag(v, name, cmd.Flags().Lookup(name))
	}
	return cmd
}

func newAsmCommand(v *viper.Viper, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asm [flags] listing",
		Short: "Assemble a mnemonic listing into stackbad source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			listing, err := os.ReadFile(in)
			if err != nil {
				return errors.Wrapf(err, "failed to read listing %q", in)
			}
			src, err := asm.Assemble(string(listing))
			if err != nil {
				fmt.Fprintf(stderr, "assembly failed: %v\n", err)
				return err
			}
			out := v.GetString("asm-output")
			if out == "" {
				out = utils.ReplaceExt(in, ".sb")
			}
			if err := os.WriteFile(out, []byte(src), 0o644); err != nil {
				return errors.Wrapf(err, "failed to write source %q", out)
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "output path (default: listing with .sb extension)")
	mustBindPFlag(v, "asm-output", cmd.Flags().Lookup("output"))
	return cmd
}

// buildAll compiles every input independently and in parallel. A failure in
// one file does not stop the others; all failures are returned combined.
func buildAll(paths []string, cfg buildConfig, log *zap.Logger) error {
	errs := make([]error, len(paths))
	var g errgroup.Group
	if cfg.jobs > 0 {
		g.SetLimit(cfg.jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			errs[i] = buildFile(path, cfg, log.With(zap.String("file", path)))
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

func newBackend(emit string, name string) compiler.Backend {
	if emit == "ir" {
		return irtext.New(name)
	}
	return native.New(name)
}

func buildFile(path string, cfg buildConfig, log *zap.Logger) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read input file %q", path)
	}

	out := cfg.output
	if out == "" {
		ext := ".o"
		if cfg.emit == "ir" {
			ext = ".ll"
		}
		out = utils.ReplaceExt(path, ext)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	backend := newBackend(cfg.emit, name)
	defer backend.Dispose()

	var buf bytes.Buffer
	if _, err := compiler.Compile(string(src), backend, &buf,
		compiler.WithLogger(log),
		compiler.WithPrune(cfg.prune),
	); err != nil {
		return &sourceError{path: path, src: string(src), err: err}
	}

	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write output file %q", out)
	}
	log.Info("compiled", zap.String("output", out), zap.Int("bytes", buf.Len()))
	return nil
}

// reportErrors prints every error in err, rendering compilation errors as
// caret snippets.
func reportErrors(w io.Writer, err error) {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	for _, e := range multierr.Errors(err) {
		var se *sourceError
		if errors.As(e, &se) {
			fmt.Fprintln(w, compiler.Snippet(se.err, se.path, se.src, color))
			continue
		}
		fmt.Fprintln(w, e)
	}
}
