// Package config loads the decoder's safety-ceiling settings from the
// environment, the way Maubry94-redigo/envs loads its snapshot/AOF
// intervals: godotenv first, then caarlos0/env/v11 into a flat struct.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Options mirrors rdb.Options (the string-size ceiling and the LZF output
// cap), loaded once at process start and passed down to the decoder.
type Options struct {
	MaxStringSize uint64 `env:"SNAPDUMP_MAX_STRING_SIZE" envDefault:"104857600"`
	MaxLZFOutput  uint64 `env:"SNAPDUMP_MAX_LZF_OUTPUT" envDefault:"104857600"`
}

// LoadDotEnv loads a .env file from the working directory, if present.
// A missing file is not an error — env vars and flag defaults still apply.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load parses Options out of the environment.
func Load() (Options, error) {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return Options{}, fmt.Errorf("parsing environment: %w", err)
	}
	return opts, nil
}
