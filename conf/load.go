package conf

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	tagName   = "conf"
	envPrefix = "APH"
)

// Load reads config.yaml, applies APH_* environment overrides and
// fills the remaining gaps from Default. A missing config file is not
// an error; the environment plus defaults carry a file-less
// deployment. APH_CONFIG points at an explicit file and that file
// must then exist.
func Load() (Config, error) {
	v := viper.New()

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/approvalhub")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only visits keys viper already knows about, so every
	// leaf is bound up front or environment-only overrides would be
	// dropped on deployments without a config file.
	bindEnvKeys(v, reflect.TypeOf(Config{}), nil)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = tagName
	}); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := mergo.Merge(&config, Default()); err != nil {
		return Config{}, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	return config, nil
}

func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix []string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := strings.Split(field.Tag.Get(tagName), ",")[0]
		switch name {
		case "-":
			continue
		case "":
			name = strings.ToLower(field.Name)
		}

		path := append(append([]string(nil), prefix...), name)

		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		if ft.Kind() == reflect.Struct {
			bindEnvKeys(v, ft, path)
			continue
		}

		_ = v.BindEnv(strings.Join(path, "."))
	}
}
