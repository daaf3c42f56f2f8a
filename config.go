package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/grabthemic/games/grabthemic"
)

const (
	envPrefix  = "GRABTHEMIC"
	maxPlayers = 8
)

type Config struct {
	bind           string
	countdown      int
	players        []string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	singing        int
	tick           time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.countdown < 1 {
		return fmt.Errorf("invalid countdown (must be at least 1): %d", c.countdown)
	}
	if c.singing < 1 {
		return fmt.Errorf("invalid singing time (must be at least 1): %d", c.singing)
	}
	if c.tick <= 0 {
		return fmt.Errorf("invalid tick interval (must be positive): %s", c.tick)
	}
	if len(c.players) < 1 || len(c.players) > maxPlayers {
		return fmt.Errorf("invalid number of players (must be between 1-%d inclusive): %d", maxPlayers, len(c.players))
	}

	seen := make(map[string]bool, len(c.players))
	for _, name := range c.players {
		name = strings.TrimSpace(name)
		if name == "" {
			return errors.New("player names must not be empty")
		}
		if seen[name] {
			return fmt.Errorf("duplicate player name: %q", name)
		}
		seen[name] = true
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) playerNames() []string {
	names := make([]string, 0, len(c.players))
	for _, name := range c.players {
		names = append(names, strings.TrimSpace(name))
	}
	return names
}

// loadEnvFile populates the environment from a dotenv file before flags are
// bound. Variables already present in the environment win. A missing file
// is not an error.
func loadEnvFile() error {
	path := os.Getenv(envPrefix + "_ENV_FILE")
	if path == "" {
		path = ".env"
	}

	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "grabthemic",
		Short:         "A party game where the fastest tap grabs the mic and sings the word.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: GRABTHEMIC_BIND)")
	fs.IntVar(&cfg.countdown, "countdown", grabthemic.DefaultCountdown, "ticks players have to grab the mic (env: GRABTHEMIC_COUNTDOWN)")
	fs.StringSliceVar(&cfg.players, "players", append([]string(nil), grabthemic.DefaultPlayerNames...), "comma-separated player names (env: GRABTHEMIC_PLAYERS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: GRABTHEMIC_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: GRABTHEMIC_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: GRABTHEMIC_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are ended (env: GRABTHEMIC_SESSION_TIMEOUT)")
	fs.IntVar(&cfg.singing, "singing", grabthemic.DefaultSinging, "ticks the singer has to sing the word (env: GRABTHEMIC_SINGING)")
	fs.DurationVar(&cfg.tick, "tick", grabthemic.DefaultTickInterval, "length of one timer tick (env: GRABTHEMIC_TICK)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: GRABTHEMIC_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: GRABTHEMIC_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: GRABTHEMIC_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: GRABTHEMIC_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("grabthemic v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
