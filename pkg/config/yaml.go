package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/goccy/go-yaml"
)

// ConfigBaseName is the base name of the relayer configuration file without extension.
const ConfigBaseName = "relayer"

// ConfigExtension is the file extension for the configuration file without the leading dot.
const ConfigExtension = "yaml"

// RelayerConfigYaml is the filename for the relayer configuration file.
const RelayerConfigYaml = ConfigBaseName + "." + ConfigExtension

// SaveAsYaml writes the configuration to relayer.yaml in the root directory.
func (c Config) SaveAsYaml() error {
	return WriteYamlConfig(c)
}

// WriteYamlConfig writes the YAML configuration to the relayer.yaml file.
// Field comment tags are written as head comments.
func WriteYamlConfig(config Config) error {
	if err := EnsureRoot(config.RootDir); err != nil {
		return err
	}
	configPath := filepath.Join(config.RootDir, RelayerConfigYaml)

	data, err := yaml.MarshalWithOptions(config, yaml.WithComment(commentMap(reflect.TypeOf(Config{}))))
	if err != nil {
		return fmt.Errorf("error marshaling YAML data: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("error writing %s file: %w", RelayerConfigYaml, err)
	}
	return nil
}

// commentMap collects the comment tags of t keyed by YAML path.
func commentMap(t reflect.Type) yaml.CommentMap {
	comments := yaml.CommentMap{}

	var processFields func(t reflect.Type, prefix string)
	processFields = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			yamlTag := field.Tag.Get("yaml")
			if yamlTag == "" || yamlTag == "-" {
				continue
			}

			fieldPath := yamlTag
			if prefix != "" {
				fieldPath = prefix + "." + yamlTag
			}
			if comment := field.Tag.Get("comment"); comment != "" {
				comments["$."+fieldPath] = []*yaml.Comment{yaml.HeadComment(comment)}
			}

			// DurationWrapper is written as a scalar
			if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(DurationWrapper{}) {
				processFields(field.Type, fieldPath)
			}
		}
	}
	processFields(t, "")
	return comments
}

// EnsureRoot ensures that the root directory and its config and data
// subdirectories exist.
func EnsureRoot(rootDir string) error {
	if rootDir == "" {
		return fmt.Errorf("root directory cannot be empty")
	}

	for _, dir := range []string{rootDir, filepath.Join(rootDir, DefaultConfigDir), filepath.Join(rootDir, DefaultDataDir)} {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("could not create directory %q: %w", dir, err)
		}
	}
	return nil
}
