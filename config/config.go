// Package config loads the generator configuration from a YAML file and the environment.
package config

import (
	"bytes"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fumin/dice"
	"github.com/fumin/dice/construct"
	"github.com/fumin/dice/diagram"
)

const (
	EnvMaxDepth      = "DICE_MAX_DEPTH"
	EnvRanks         = "DICE_RANKS"
	EnvWeightRule    = "DICE_WEIGHT_RULE"
	EnvSpinIntegrate = "DICE_SPIN_INTEGRATE"
	EnvStore         = "DICE_STORE"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	MaxDepth      int      `yaml:"max_depth"`
	Ranks         []int    `yaml:"ranks"`
	WeightRule    string   `yaml:"weight_rule"`
	SpinIntegrate bool     `yaml:"spin_integrate"`
	Operators     []string `yaml:"operators"`
	Workers       int      `yaml:"workers"`
	Store         string   `yaml:"store"`
}

// Default returns the configuration of the second order unitary theory over all central operators.
func Default() Config {
	return Config{
		MaxDepth:   4,
		Ranks:      []int{2},
		WeightRule: construct.Unitary.String(),
		Operators:  slices.Concat(dice.TwoBody, dice.OneBody),
		Workers:    runtime.NumCPU(),
		Store:      "dice.db",
	}
}

// Load reads the YAML file at path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "")
		}
		if err := Parse(b, &c); err != nil {
			return Config{}, errors.Wrap(err, path)
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using system environment variables")
	}
	if err := c.FromEnv(); err != nil {
		return Config{}, errors.Wrap(err, "")
	}

	if err := c.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "")
	}
	return c, nil
}

// Parse decodes YAML into c, rejecting unknown fields.
func Parse(b []byte, c *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(b))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// FromEnv overrides fields whose environment variable is set.
func (c *Config) FromEnv() error {
	if v, ok := os.LookupEnv(EnvMaxDepth); ok {
		d, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, EnvMaxDepth)
		}
		c.MaxDepth = d
	}
	if v, ok := os.LookupEnv(EnvRanks); ok {
		ranks, err := parseInts(v)
		if err != nil {
			return errors.Wrap(err, EnvRanks)
		}
		c.Ranks = ranks
	}
	if v, ok := os.LookupEnv(EnvWeightRule); ok {
		c.WeightRule = v
	}
	if v, ok := os.LookupEnv(EnvSpinIntegrate); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, EnvSpinIntegrate)
		}
		c.SpinIntegrate = b
	}
	if v, ok := os.LookupEnv(EnvStore); ok {
		c.Store = v
	}
	return nil
}

func parseInts(s string) ([]int, error) {
	ints := make([]int, 0)
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		ints = append(ints, n)
	}
	return ints, nil
}

func (c Config) Validate() error {
	if c.MaxDepth < 1 {
		return errors.Wrapf(ErrInvalid, "max depth %d", c.MaxDepth)
	}
	if len(c.Ranks) == 0 {
		return errors.Wrap(ErrInvalid, "no ranks")
	}
	for _, r := range c.Ranks {
		if r < 1 {
			return errors.Wrapf(ErrInvalid, "rank %d", r)
		}
	}
	if _, err := construct.ParseWeightRule(c.WeightRule); err != nil {
		return errors.Wrap(err, "")
	}
	if len(c.Operators) == 0 {
		return errors.Wrap(ErrInvalid, "no operators")
	}
	if _, err := c.ParseOperators(); err != nil {
		return errors.Wrap(err, "")
	}
	if c.Workers < 0 {
		return errors.Wrapf(ErrInvalid, "workers %d", c.Workers)
	}
	if c.Store == "" {
		return errors.Wrap(ErrInvalid, "no store")
	}
	return nil
}

func (c Config) ParseOperators() ([]diagram.Operator, error) {
	ops := make([]diagram.Operator, 0, len(c.Operators))
	for _, s := range c.Operators {
		op, err := diagram.ParseOperator(s)
		if err != nil {
			return nil, errors.Wrapf(err, "%q", s)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Options converts c into driver options.
// The configuration must be valid.
func (c Config) Options(logger *log.Logger) dice.Options {
	rule, _ := construct.ParseWeightRule(c.WeightRule)
	opt := dice.NewOptions().MaxDepth(c.MaxDepth).Ranks(c.Ranks...).WeightRule(rule).SpinIntegrate(c.SpinIntegrate)
	if c.Workers > 0 {
		opt = opt.Workers(c.Workers)
	}
	if logger != nil {
		opt = opt.Logger(logger)
	}
	return opt
}

// Fingerprint returns the YAML form of the fields that determine the generated terms.
// Runs with equal fingerprints produce the same terms.
func (c Config) Fingerprint() string {
	c.Workers, c.Store = 0, ""
	b, err := yaml.Marshal(c)
	if err != nil {
		return err.Error()
	}
	return string(b)
}
