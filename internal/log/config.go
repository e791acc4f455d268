package log

// Config controls the global logger.
type Config struct {
	// Name is attached to every entry, usually the service name.
	Name string `conf:"name" yaml:"name" json:"name"`
	// Level is one of debug, info, warn, error.
	Level string `conf:"level" yaml:"level" json:"level"`
	// Format is console or json.
	Format string `conf:"format" yaml:"format" json:"format"`
	// Output is stdout, stderr, or a file path. File output rotates.
	Output string `conf:"output" yaml:"output" json:"output"`
	File   FileConfig `conf:"file" yaml:"file" json:"file"`
}

// FileConfig controls rotation when Output is a file path.
type FileConfig struct {
	// MaxSize is the maximum size in megabytes before rotation.
	MaxSize int `conf:"max_size" yaml:"max_size" json:"max_size"`
	// MaxBackups is the number of rotated files to retain.
	MaxBackups int `conf:"max_backups" yaml:"max_backups" json:"max_backups"`
	// MaxAge is the maximum age in days of a rotated file.
	MaxAge   int  `conf:"max_age" yaml:"max_age" json:"max_age"`
	Compress bool `conf:"compress" yaml:"compress" json:"compress"`
}

func (c Config) withDefaults() Config {
	if c.Level == "" {
		c.Level = "info"
	}

	if c.Format == "" {
		c.Format = "console"
	}

	if c.Output == "" {
		c.Output = "stdout"
	}

	if c.File.MaxSize == 0 {
		c.File.MaxSize = 100
	}

	if c.File.MaxBackups == 0 {
		c.File.MaxBackups = 10
	}

	if c.File.MaxAge == 0 {
		c.File.MaxAge = 30
	}

	return c
}
