// Package config provides functionality for managing configuration options
// for the panel using command-line flags, environment variables and an
// optional panel.yaml file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// FileName is the options file looked up in the config directory.
const FileName = "panel.yaml"

// Options holds the configuration values for the server.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `yaml:"addr"`

	// DataDir holds shared files, website roots and backups.
	DataDir string `yaml:"data_dir"`

	// ConfigDir holds the YAML collections and system.yaml.
	ConfigDir string `yaml:"-"`

	// LogLevel is a zap level name.
	LogLevel string `yaml:"log_level"`

	// TLS serves HTTPS with CertFile and KeyFile, generating a
	// self-signed pair when they are missing.
	TLS      bool   `yaml:"tls"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`

	// MaxUploadMB limits multipart upload bodies.
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

// Defaults returns the options used when nothing else is set.
func Defaults() Options {
	return Options{
		Addr:        "0.0.0.0:8000",
		DataDir:     "./data",
		ConfigDir:   "./config",
		LogLevel:    "info",
		CORSOrigins: []string{"*"},
		MaxUploadMB: 512,
	}
}

// Parse reads os.Args, the process environment (after loading .env if
// present) and panel.yaml.
func Parse() (*Options, error) {
	// A missing .env is normal.
	_ = godotenv.Load()
	return ParseArgs(afero.NewOsFs(), os.Args[1:], os.Getenv)
}

// ParseArgs resolves options with this precedence, lowest first:
// defaults, panel.yaml, environment, explicitly set flags.
func ParseArgs(fsys afero.Fs, args []string, getenv func(string) string) (*Options, error) {
	opts := Defaults()
	var cors string

	fset := flag.NewFlagSet("dloperos", flag.ContinueOnError)
	fset.StringVar(&opts.Addr, "a", opts.Addr, "run on ip:port server")
	fset.StringVar(&opts.DataDir, "data", opts.DataDir, "data directory")
	fset.StringVar(&opts.ConfigDir, "config", opts.ConfigDir, "config directory")
	fset.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level")
	fset.BoolVar(&opts.TLS, "tls", opts.TLS, "serve HTTPS")
	fset.StringVar(&opts.CertFile, "cert", opts.CertFile, "TLS certificate file")
	fset.StringVar(&opts.KeyFile, "key", opts.KeyFile, "TLS key file")
	fset.StringVar(&cors, "cors", strings.Join(opts.CORSOrigins, ","), "comma separated allowed origins")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	explicit := map[string]bool{}
	fset.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	flagged := opts

	opts = Defaults()
	if v := getenv("DLOPER_CONFIG_DIR"); v != "" {
		opts.ConfigDir = v
	}
	if explicit["config"] {
		opts.ConfigDir = flagged.ConfigDir
	}
	if err := loadFile(fsys, filepath.Join(opts.ConfigDir, FileName), &opts); err != nil {
		return nil, err
	}

	if v := getenv("SERVER_ADDRESS"); v != "" {
		opts.Addr = v
	}
	if v := getenv("DLOPER_DATA_DIR"); v != "" {
		opts.DataDir = v
	}
	if v := getenv("DLOPER_LOG_LEVEL"); v != "" {
		opts.LogLevel = v
	}

	for name := range explicit {
		switch name {
		case "a":
			opts.Addr = flagged.Addr
		case "data":
			opts.DataDir = flagged.DataDir
		case "log-level":
			opts.LogLevel = flagged.LogLevel
		case "tls":
			opts.TLS = flagged.TLS
		case "cert":
			opts.CertFile = flagged.CertFile
		case "key":
			opts.KeyFile = flagged.KeyFile
		case "cors":
			opts.CORSOrigins = splitList(cors)
		}
	}

	applyDefaults(&opts)
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// loadFile decodes path over opts. A missing file is not an error.
func loadFile(fsys afero.Fs, path string, opts *Options) error {
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyDefaults(o *Options) {
	if o.CertFile == "" {
		o.CertFile = filepath.Join(o.ConfigDir, "tls", "server.crt")
	}
	if o.KeyFile == "" {
		o.KeyFile = filepath.Join(o.ConfigDir, "tls", "server.key")
	}
	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"*"}
	}
}

func (o *Options) validate() error {
	switch {
	case strings.TrimSpace(o.Addr) == "":
		return errors.New("listen address is required")
	case strings.TrimSpace(o.DataDir) == "":
		return errors.New("data directory is required")
	case strings.TrimSpace(o.ConfigDir) == "":
		return errors.New("config directory is required")
	case o.MaxUploadMB < 0:
		return errors.New("max_upload_mb must not be negative")
	}
	return nil
}

// MaxUploadBytes converts MaxUploadMB to bytes. Zero disables the limit.
func (o *Options) MaxUploadBytes() int64 {
	return o.MaxUploadMB << 20
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
