// Package main provides the entry point for the webstash CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/webstash/webstash/internal/hoststore"
	"github.com/webstash/webstash/internal/stash"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	storeName   string
	dataDir     string
	maxEntries  int
	ttlFlag     time.Duration
	kindFlag    string
	debug       bool
	mediaOutput string

	rootCmd = &cobra.Command{
		Use:   "webstash",
		Short: "A TTL and LRU layer over simple key/value stores",
		Long: paragraph(
			fmt.Sprintf("\nCache values %s: entries expire after a ttl, and the bounded store evicts its least-recently-accessed entries when full.", keyword("with bookkeeping")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return applyConfig()
		},
	}
)

// envOverrides are environment settings applied on top of the config
// file and flags.
type envOverrides struct {
	StoreName  string `env:"WEBSTASH_STORE"`
	DataDir    string `env:"WEBSTASH_DATA_DIR"`
	MaxEntries int    `env:"WEBSTASH_MAX_ENTRIES"`
	Debug      bool   `env:"WEBSTASH_DEBUG"`
}

// applyConfig resolves the effective settings from viper, environment,
// and flags, and configures logging.
func applyConfig() error {
	storeName = viper.GetString("store")
	dataDir = viper.GetString("data_dir")
	maxEntries = viper.GetInt("max_entries")
	debug = viper.GetBool("debug")
	if kindFlag == "" {
		kindFlag = viper.GetString("kind")
	}
	if ttlFlag == 0 {
		ttlFlag = viper.GetDuration("ttl")
	}

	overrides, err := env.ParseAs[envOverrides]()
	if err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}
	if overrides.StoreName != "" {
		storeName = overrides.StoreName
	}
	if overrides.DataDir != "" {
		dataDir = overrides.DataDir
	}
	if overrides.MaxEntries > 0 {
		maxEntries = overrides.MaxEntries
	}
	if overrides.Debug {
		debug = true
	}

	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
	return nil
}

// cliStash bundles a Stash with its disk-backed stores so commands can
// report disk usage.
type cliStash struct {
	*stash.Stash
	local   *hoststore.FileKV
	objects *hoststore.DiskObject
}

// buildStash assembles a Stash over disk-backed durable stores under
// the data directory. The session store is in-memory and scoped to
// this invocation.
func buildStash() (*cliStash, error) {
	dir := dataDir
	if dir == "" {
		scope := gap.NewScope(gap.User, "webstash")
		dirs, err := scope.DataDirs()
		if err != nil || len(dirs) == 0 {
			return nil, fmt.Errorf("could not determine data directory: %w", err)
		}
		dir = dirs[0]
	}

	if storeName == "" {
		storeName = stash.DefaultStoreName
	}

	local, err := hoststore.NewFileKV(filepath.Join(dir, "local"), 3)
	if err != nil {
		return nil, fmt.Errorf("unable to open local store: %w", err)
	}
	objects, err := hoststore.NewDiskObject(filepath.Join(dir, "objects", storeName))
	if err != nil {
		return nil, fmt.Errorf("unable to open bounded store: %w", err)
	}

	s := stash.New(stash.Config{
		StoreName:  storeName,
		MaxEntries: maxEntries,
		DefaultTTL: ttlFlag,
		Local:      local,
		Objects:    objects,
		Logger:     log.Default(),
	})

	return &cliStash{Stash: s, local: local, objects: objects}, nil
}

var setCmd = &cobra.Command{
	Use:   "set <key> <url> <value>",
	Short: "Store a value with a ttl",
	Long:  paragraph("\nStore a JSON value. The key addresses the session and local stores; the url addresses the bounded store. Values that are not valid JSON are stored as strings."),
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildStash()
		if err != nil {
			return err
		}

		kind, err := stash.ParseKind(kindFlag)
		if err != nil {
			return err
		}

		var value any
		if err := json.Unmarshal([]byte(args[2]), &value); err != nil {
			value = args[2]
		}

		opts := stash.Options{TTL: ttlFlag, Kind: kind}
		if err := s.Set(cmd.Context(), args[0], args[1], value, opts); err != nil {
			return fmt.Errorf("unable to store value: %w", err)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <key> <url>",
	Short: "Look up a value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildStash()
		if err != nil {
			return err
		}

		kind, err := stash.ParseKind(kindFlag)
		if err != nil {
			return err
		}

		raw, ok, err := s.Get(cmd.Context(), args[0], args[1], kind)
		if err != nil {
			return fmt.Errorf("unable to read value: %w", err)
		}
		if !ok {
			fmt.Println(subtle("(absent)"))
			return nil
		}

		fmt.Println(string(raw))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <url>",
	Short: "Remove a bounded-store entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildStash()
		if err != nil {
			return err
		}
		if err := s.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("unable to delete entry: %w", err)
		}
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty every backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := buildStash()
		if err != nil {
			return err
		}
		if err := s.ClearAll(cmd.Context()); err != nil {
			return fmt.Errorf("unable to clear stores: %w", err)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-backend entry counts and disk usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := buildStash()
		if err != nil {
			return err
		}

		stats, err := s.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("unable to read stats: %w", err)
		}

		usage := uint64(s.local.DiskUsage() + s.objects.DiskUsage()) //nolint:gosec

		fmt.Printf("%s %s\n", keyword("store:"), s.StoreName())
		fmt.Printf("%s %d\n", keyword("session entries:"), stats.SessionEntries)
		fmt.Printf("%s %d\n", keyword("local entries:"), stats.LocalEntries)
		fmt.Printf("%s %d / %d\n", keyword("bounded entries:"), stats.BoundedEntries, stats.MaxEntries)
		fmt.Printf("%s %s\n", keyword("disk usage:"), humanize.Bytes(usage))
		return nil
	},
}

var fetchMediaCmd = &cobra.Command{
	Use:   "fetch-media <url> <media-url>",
	Short: "Fetch a resource and cache its bytes in the bounded store",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildStash()
		if err != nil {
			return err
		}
		if err := s.SetMedia(cmd.Context(), args[0], args[1], ttlFlag); err != nil {
			return fmt.Errorf("unable to cache media: %w", err)
		}
		return nil
	},
}

var getMediaCmd = &cobra.Command{
	Use:   "get-media <url>",
	Short: "Read cached media bytes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := buildStash()
		if err != nil {
			return err
		}

		data, ok, err := s.GetMedia(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("unable to read media: %w", err)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, subtle("(absent)"))
			os.Exit(1)
		}

		if mediaOutput != "" {
			if err := os.WriteFile(mediaOutput, data, 0o644); err != nil { //nolint:gosec
				return fmt.Errorf("unable to write output file: %w", err)
			}
			return nil
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVar(&storeName, "store", "", "bounded store name")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for durable stores")
	rootCmd.PersistentFlags().IntVar(&maxEntries, "max-entries", 0, "bounded store entry capacity")
	rootCmd.PersistentFlags().DurationVar(&ttlFlag, "ttl", 0, "time-to-live for written entries")
	rootCmd.PersistentFlags().StringVarP(&kindFlag, "kind", "k", "", "storage kind: bounded, session, or local")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	getMediaCmd.Flags().StringVarP(&mediaOutput, "output", "o", "", "write media bytes to a file instead of stdout")

	// Config bindings
	_ = viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("max_entries", rootCmd.PersistentFlags().Lookup("max-entries"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	viper.SetDefault("store", stash.DefaultStoreName)
	viper.SetDefault("max_entries", stash.DefaultMaxEntries)
	viper.SetDefault("ttl", stash.DefaultTTL)
	viper.SetDefault("kind", "bounded")
	viper.SetDefault("data_dir", "")

	rootCmd.AddCommand(setCmd, getCmd, deleteCmd, clearCmd, statsCmd,
		fetchMediaCmd, getMediaCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "webstash")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "webstash")}, dirs...)
	}

	if c := os.Getenv("WEBSTASH_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("webstash")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("webstash")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "webstash.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
