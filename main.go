// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The animplay command decodes and plays animated images.
//
// Usage:
//
//	animplay [-config file] [-log level] [-lines] info [-size WxH] <file>
//	animplay [-config file] [-log level] [-lines] export [-o dir] [-format png|bmp|tiff] [-select expr] [-size WxH] <file>
//	animplay [-config file] [-log level] [-lines] play [-ticks n] [-loops n] [-watch] [-size WxH] <file>
//
// If no configuration file is given, animplay/animplay.toml is looked for
// in the user's configuration directories.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/kortschak/animplay/internal/animation"
	_ "github.com/kortschak/animplay/internal/apng"
	"github.com/kortschak/animplay/internal/config"
	"github.com/kortschak/animplay/internal/slogext"
	"github.com/kortschak/animplay/internal/version"
	"github.com/kortschak/animplay/internal/xdg"
)

func main() {
	os.Exit(Main())
}

// defaultConfig is the path of the configuration file relative to the
// user's configuration directories.
var defaultConfig = filepath.Join("animplay", "animplay.toml")

func Main() int {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %s:

  %[1]s [options] info [-size WxH] <file>
  %[1]s [options] export [-o dir] [-format png|bmp|tiff] [-select expr] [-size WxH] <file>
  %[1]s [options] play [-ticks n] [-loops n] [-watch] [-size WxH] <file>

Options:
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	cfgPath := flag.String("config", "", "configuration file (default from user config directory)")
	logging := flag.String("log", "", "logging level (debug, info, warn or error) (default from config or info)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	v := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *v {
		err := version.Print(os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var level slog.LevelVar
	if cfg.Log.Level != nil {
		level.Set(*cfg.Log.Level)
	}
	if *logging != "" {
		l, err := slogext.ParseLevel(*logging)
		if err != nil {
			flag.Usage()
			return 2
		}
		level.Set(l)
	}
	addSource := *lines
	if cfg.Log.AddSource != nil && !isSet("lines") {
		addSource = *cfg.Log.AddSource
	}

	// log is the root logger.
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: slogext.NewAtomicBool(addSource),
	})})
	// mlog is the logger for main.
	mlog := log.With(slog.String("component", "animplay.main"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cmd func(context.Context, io.Writer, *config.Config, []string, *slog.Logger) error
	switch flag.Arg(0) {
	case "info":
		cmd = runInfo
	case "export":
		cmd = runExport
	case "play":
		cmd = runPlay
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %q\n", flag.Arg(0))
		flag.Usage()
		return 2
	}
	mlog.LogAttrs(ctx, slog.LevelDebug, "run", slog.String("command", flag.Arg(0)), slog.Any("args", flag.Args()[1:]))
	err = cmd(ctx, os.Stdout, cfg, flag.Args()[1:], log)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		var uerr usageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		mlog.LogAttrs(ctx, slog.LevelDebug, "command failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "%s: %v\n", flag.Arg(0), err)
		return 1
	}
	return 0
}

// isSet returns whether the named flag was set on the command line.
func isSet(name string) bool {
	var set bool
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// loadConfig returns the default configuration merged with the
// configuration at path, or the configuration in the user's config
// directories if path is empty. It is not an error for there to be no
// configuration in the user's config directories.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		var err error
		path, err = xdg.Config(defaultConfig, false)
		if err != nil {
			if err != syscall.ENOENT {
				return nil, err
			}
			return config.Default(), nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return config.Merge(config.Default(), cfg), nil
}

// usageError is an error in the arguments of a command.
type usageError string

func (e usageError) Error() string { return string(e) }

// newFlagSet returns a flag set for the named command that reports
// errors instead of exiting.
func newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage of %s:\n\n  %[1]s %s\n\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs parses args into fs and returns the single file argument.
func parseArgs(fs *flag.FlagSet, args []string) (string, error) {
	err := fs.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return "", err
		}
		return "", usageError(err.Error())
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return "", usageError(fmt.Sprintf("%s: need exactly one file", fs.Name()))
	}
	return fs.Arg(0), nil
}

// parseSize parses a WxH size. Either dimension may be omitted, but
// not both. An empty string is the zero size.
func parseSize(s string) (width, height int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	w, h, ok := strings.Cut(s, "x")
	if !ok || (w == "" && h == "") {
		return 0, 0, usageError(fmt.Sprintf("invalid size %q: must be WxH", s))
	}
	if w != "" {
		width, err = strconv.Atoi(w)
		if err != nil || width <= 0 {
			return 0, 0, usageError(fmt.Sprintf("invalid width in %q", s))
		}
	}
	if h != "" {
		height, err = strconv.Atoi(h)
		if err != nil || height <= 0 {
			return 0, 0, usageError(fmt.Sprintf("invalid height in %q", s))
		}
	}
	return width, height, nil
}

// decodeOptions returns the decoder options and requested target
// dimensions from the decode configuration and the -size flag value.
func decodeOptions(cfg *config.Decode, size string, log *slog.Logger) (opts []animation.Option, width, height int, err error) {
	if cfg == nil {
		cfg = &config.Decode{}
	}
	r, err := animation.ResamplerFor(cfg.Resampler)
	if err != nil {
		return nil, 0, 0, err
	}
	opts = []animation.Option{animation.WithLogger(log), animation.WithResampler(r)}
	if cfg.AllowStill {
		opts = append(opts, animation.AllowStill())
	}
	if cfg.Width != nil {
		width = *cfg.Width
	}
	if cfg.Height != nil {
		height = *cfg.Height
	}
	if size != "" {
		width, height, err = parseSize(size)
		if err != nil {
			return nil, 0, 0, err
		}
	}
	return opts, width, height, nil
}

// openAnimation opens the animation held in data, configuring its target
// size from the decode configuration and the -size flag value.
func openAnimation(data []byte, cfg *config.Decode, size string, log *slog.Logger) (*animation.Decoder, error) {
	opts, width, height, err := decodeOptions(cfg, size, log)
	if err != nil {
		return nil, err
	}
	dec, err := animation.Open(data, opts...)
	if err != nil {
		return nil, err
	}
	var allowInexact bool
	if cfg != nil {
		allowInexact = cfg.AllowInexact
	}
	target, ok := animation.FitSize(dec.Size(), width, height, allowInexact)
	if ok {
		dec.Configure(target)
	}
	return dec, nil
}

// openFile opens the animation in the file at path.
func openFile(path string, cfg *config.Decode, size string, log *slog.Logger) (*animation.Decoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec, err := openAnimation(data, cfg, size, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dec, nil
}
