package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// fileConfig maps a command name to flag defaults, for example:
//
//	predict:
//	  data-dir: data/stage1_test
//	  batch-size: 24
//	score:
//	  matcher: hungarian
//	  thresholds: [0.5, 0.75]
type fileConfig map[string]map[string]any

// applyConfigFile sets every flag of cmd that was not given on the command
// line and has an entry in the command's section of the file.
func applyConfigFile(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return applySection(cmd.Flags(), cfg[cmd.Name()])
}

// mutuallyExclusive is the annotation cobra stores on every flag of a
// MarkFlagsMutuallyExclusive group; each value lists the group's flag names.
const mutuallyExclusive = "cobra_annotation_mutually_exclusive"

func applySection(flags *pflag.FlagSet, section map[string]any) error {
	explicit := map[string]bool{}
	flags.Visit(func(f *pflag.Flag) { explicit[f.Name] = true })

	for name, value := range section {
		f := flags.Lookup(name)
		if f == nil {
			return fmt.Errorf("config: unknown flag %q for %s", name, flags.Name())
		}
		if explicit[name] || exclusiveWithExplicit(f, explicit) {
			continue
		}
		if err := flags.Set(name, configValue(value)); err != nil {
			return fmt.Errorf("config: flag %q: %w", name, err)
		}
	}
	return nil
}

// exclusiveWithExplicit reports whether a flag sharing a mutually exclusive
// group with f was given on the command line.
func exclusiveWithExplicit(f *pflag.Flag, explicit map[string]bool) bool {
	for _, group := range f.Annotations[mutuallyExclusive] {
		for _, other := range strings.Fields(group) {
			if other != f.Name && explicit[other] {
				return true
			}
		}
	}
	return false
}

func configValue(v any) string {
	list, ok := v.([]any)
	if !ok {
		return fmt.Sprint(v)
	}
	parts := make([]string, len(list))
	for i, item := range list {
		parts[i] = fmt.Sprint(item)
	}
	return strings.Join(parts, ",")
}

// envDefault returns the environment value for key, or def when unset.
func envDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
