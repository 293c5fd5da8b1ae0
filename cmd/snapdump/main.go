package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kvsnap/snapdump/internal/config"
	"github.com/kvsnap/snapdump/internal/logging"
	"github.com/kvsnap/snapdump/jsonout"
	"github.com/kvsnap/snapdump/rdb"
)

// Exit codes per spec.md §6.
const (
	exitOK              = 0
	exitInputError      = 2
	exitStructuralError = 3
)

type cliConfig struct {
	Pretty     bool   `mapstructure:"pretty"`
	Simple     bool   `mapstructure:"simple"`
	Debug      bool   `mapstructure:"debug"`
	LogFile    string `mapstructure:"log_file"`
	MaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	MaxAgeDays int    `mapstructure:"log_max_age_days"`
	MaxBackups int    `mapstructure:"log_max_backups"`
}

func main() {
	os.Exit(run())
}

func run() int {
	pflag.Bool("pretty", false, "indent the JSON output")
	pflag.Bool("simple", false, "flatten keys across databases, last key wins")
	pflag.Bool("debug", false, "enable debug logging")
	pflag.String("config", "", "optional config file (yaml/json/toml), read via viper")
	pflag.String("log_file", "", "rotate logs to this file instead of stderr only")
	pflag.Parse()

	if cfgPath, _ := pflag.CommandLine.GetString("config"); cfgPath != "" {
		viper.SetConfigFile(cfgPath)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "snapdump: reading config file: %v\n", err)
			return exitInputError
		}
	}
	_ = viper.BindPFlags(pflag.CommandLine)

	var cli cliConfig
	if err := viper.Unmarshal(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "snapdump: parsing flags: %v\n", err)
		return exitInputError
	}

	logger := logging.Init(logging.Config{
		Filename:   cli.LogFile,
		MaxSizeMB:  cli.MaxSizeMB,
		MaxAgeDays: cli.MaxAgeDays,
		MaxBackups: cli.MaxBackups,
		Debug:      cli.Debug,
	})
	defer logger.Sync()

	config.LoadDotEnv()
	envOpts, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "snapdump: %v\n", err)
		return exitInputError
	}

	args := pflag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: snapdump <input> [<output>] [--pretty] [--simple]")
		return exitInputError
	}
	inputPath := args[0]

	useColor := isatty.IsTerminal(os.Stderr.Fd())
	warn := color.New(color.FgYellow)
	if !useColor {
		warn.DisableColor()
	}

	result, err := rdb.DecodeFile(inputPath, rdb.Options{MaxStringSize: envOpts.MaxStringSize, MaxLZFOutput: envOpts.MaxLZFOutput})
	if err != nil {
		logger.Error("decode setup failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "snapdump: %v\n", err)
		return exitInputError
	}

	for _, w := range result.Warnings {
		logger.Warn("decode warning", zap.String("kind", string(w.Kind)), zap.String("key", w.Key), zap.String("msg", w.Msg))
		warn.Fprintf(os.Stderr, "warning: %s\n", w.String())
	}

	text, err := jsonout.Marshal(result, jsonout.Options{Pretty: cli.Pretty, Simple: cli.Simple})
	if err != nil {
		logger.Error("marshal failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "snapdump: %v\n", err)
		return exitStructuralError
	}

	out := os.Stdout
	if len(args) >= 2 {
		f, err := os.Create(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "snapdump: %v\n", err)
			return exitInputError
		}
		defer f.Close()
		out = f
	}
	fmt.Fprintln(out, text)

	if result.Incomplete {
		logger.Error("decode pass ended early", zap.String("input", inputPath))
		return exitStructuralError
	}
	return exitOK
}
