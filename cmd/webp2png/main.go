// Command webp2png converts WebP (and other sniffed) images to PNG, batch
// converts directories and zip archives, binds images into a PDF and serves
// conversions over HTTP.
//
// Usage:
//
//	webp2png convert [-o out.png] <input>   convert one image (use "-" for stdin, -o - for stdout)
//	webp2png info <input>                   print the image header
//	webp2png batch -o <dir> <dir|zip>       convert every image in a folder or archive
//	webp2png bind -o out.pdf <dir|zip>      bind images into a PDF, one page each
//	webp2png serve                          run the HTTP endpoint
//	webp2png config                         print the effective configuration
//	webp2png version
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/deepteams/webp2png"
	"github.com/deepteams/webp2png/internal/config"
	"github.com/deepteams/webp2png/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// app carries per-invocation state shared by the subcommands.
type app struct {
	v        *viper.Viper
	cfg      *config.Config
	log      *zap.Logger
	bindings []flagBinding
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
}

// flagBinding ties a flag to a configuration key. A nil cmd applies to
// every command.
type flagBinding struct {
	cmd       *cobra.Command
	key, flag string
}

// converter builds a Converter from the loaded configuration.
func (a *app) converter() (*webp2png.Converter, error) {
	opts, err := a.cfg.Convert.Options()
	if err != nil {
		return nil, err
	}
	return webp2png.New(opts...), nil
}

// bindFlag ties a flag of cmd to a configuration key, so an explicit flag
// overrides file and environment values. Bindings apply only when cmd is
// the command being run.
func (a *app) bindFlag(cmd *cobra.Command, key, flag string) {
	a.bindings = append(a.bindings, flagBinding{cmd: cmd, key: key, flag: flag})
}

func (a *app) applyBindings(cmd *cobra.Command) error {
	for _, b := range a.bindings {
		if b.cmd != nil && b.cmd != cmd {
			continue
		}
		if err := a.v.BindPFlag(b.key, cmd.Flags().Lookup(b.flag)); err != nil {
			return fmt.Errorf("binding flag --%s: %w", b.flag, err)
		}
	}
	return nil
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop(), stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "webp2png",
		Short: "Convert WebP images to PNG",
		Long: `webp2png decodes WebP images (lossy, lossless, alpha and the first frame of
animations) and re-encodes the pixels losslessly as PNG. PNG, JPEG, GIF, BMP
and TIFF input is accepted too unless --strict is set.

Settings come from webp2png.yaml (in . or ~/.config/webp2png), WEBP2PNG_*
environment variables and flags, in increasing precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.applyBindings(cmd); err != nil {
				return err
			}
			cfgFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(a.v, cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			l, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			a.log = l
			logging.SetLogger(l)
			if used := a.v.ConfigFileUsed(); used != "" {
				l.Debug("using config file", zap.String("path", used))
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default: ./webp2png.yaml or ~/.config/webp2png/webp2png.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log encoding: console or json")
	pf.String("compression", "default", "PNG compression: default, none, speed, best")
	pf.Bool("strict", false, "accept only WebP input")
	pf.Int("max-pixels", webp2png.DefaultMaxPixels, "reject images with more pixels than this")
	pf.Bool("verify", true, "re-read the encoded PNG header after each conversion")
	a.bindFlag(nil, "log.level", "log-level")
	a.bindFlag(nil, "log.format", "log-format")
	a.bindFlag(nil, "convert.compression", "compression")
	a.bindFlag(nil, "convert.strict", "strict")
	a.bindFlag(nil, "convert.max_pixels", "max-pixels")
	a.bindFlag(nil, "convert.verify", "verify")

	root.AddCommand(
		newConvertCmd(a),
		newInfoCmd(a),
		newBatchCmd(a),
		newBindCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd(stdin, stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "webp2png: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
