package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	dbPath    string
	manifest  string
	imagesDir string
	verbose   bool

	s3Bucket    string
	s3Endpoint  string
	s3Region    string
	s3AccessKey string
	s3SecretKey string
}

func (c *Config) validate() error {
	if c.dbPath == "" {
		return errors.New("--db-path must not be empty")
	}
	if (c.s3AccessKey == "") != (c.s3SecretKey == "") {
		return errors.New("both --s3-access-key-id and --s3-secret-access-key must be provided together")
	}
	return nil
}

func (c *Config) validateImport() error {
	if c.manifest == "" {
		return errors.New("--manifest is required")
	}
	if c.imagesDir != "" {
		info, err := os.Stat(c.imagesDir)
		if err != nil {
			return fmt.Errorf("images dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("images dir %s is not a directory", c.imagesDir)
		}
	}
	return nil
}

func (c *Config) s3Enabled() bool {
	return c.s3Bucket != ""
}

// bindEnv lets CAMPUSGUESS_* variables fill in any flag not given on the
// command line.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CAMPUSGUESS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "importer",
		Short:   "Loads campus locations and their photos into the game database.",
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.validate()
		},
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&cfg.dbPath, "db-path", "data/campusguess.db", "path to the sqlite database (env: CAMPUSGUESS_DB_PATH)")
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "log every location as it is imported (env: CAMPUSGUESS_VERBOSE)")
	pfs.StringVar(&cfg.s3Bucket, "s3-bucket", "", "bucket to upload photos to; photos are skipped when empty (env: CAMPUSGUESS_S3_BUCKET)")
	pfs.StringVar(&cfg.s3Endpoint, "s3-endpoint", "", "custom s3 endpoint, e.g. for minio (env: CAMPUSGUESS_S3_ENDPOINT)")
	pfs.StringVar(&cfg.s3Region, "s3-region", "auto", "s3 region (env: CAMPUSGUESS_S3_REGION)")
	pfs.StringVar(&cfg.s3AccessKey, "s3-access-key-id", "", "s3 access key id (env: CAMPUSGUESS_S3_ACCESS_KEY_ID)")
	pfs.StringVar(&cfg.s3SecretKey, "s3-secret-access-key", "", "s3 secret access key (env: CAMPUSGUESS_S3_SECRET_ACCESS_KEY)")
	bindEnv(v, pfs)

	locations := &cobra.Command{
		Use:   "locations",
		Short: "Import the locations listed in a YAML manifest",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validateImport(); err != nil {
				return err
			}
			return importLocations(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	lfs := locations.Flags()
	lfs.StringVarP(&cfg.manifest, "manifest", "m", "", "YAML manifest listing the locations (env: CAMPUSGUESS_MANIFEST)")
	lfs.StringVar(&cfg.imagesDir, "images-dir", ".", "directory relative image paths are resolved against (env: CAMPUSGUESS_IMAGES_DIR)")
	bindEnv(v, lfs)

	count := &cobra.Command{
		Use:   "count",
		Short: "Print how many locations are stored",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return countLocations(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(locations, count)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("campusguess-importer v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
