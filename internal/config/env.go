package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SCOUR_"

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// envSetter applies one environment value to the config.
type envSetter func(cfg *Config, value string) error

// envMapping maps variable names, without the prefix, to settings.
var envMapping = map[string]envSetter{
	"MODE": func(c *Config, v string) error {
		c.Search.Mode = v
		return nil
	},
	"MAX_FILE_SIZE": func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.Search.MaxFileSize = n
		return nil
	},
	"WORKERS": func(c *Config, v string) error {
		return setInt(&c.Search.Workers, v)
	},
	"MAX_RESULTS": func(c *Config, v string) error {
		return setInt(&c.Search.MaxResults, v)
	},
	"INCLUDE_HIDDEN": func(c *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		c.Search.IncludeHidden = b
		return nil
	},
	"MODULE_DIRS": func(c *Config, v string) error {
		c.Search.ModuleDirs = splitList(v)
		return nil
	},
	"EXCLUDE": func(c *Config, v string) error {
		c.Search.Exclude = splitList(v)
		return nil
	},
	"INCLUDE": func(c *Config, v string) error {
		c.Search.Include = splitList(v)
		return nil
	},
	"LOG_LEVEL": func(c *Config, v string) error {
		c.Logging.Level = v
		return nil
	},
	"LOG_FILE": func(c *Config, v string) error {
		c.Logging.File = v
		return nil
	},
}

// ApplyEnv overrides cfg from SCOUR_* variables found through lookup.
// Unparseable values are reported together; the rest are still applied.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	var errs []error
	for name, set := range envMapping {
		value, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		if err := set(cfg, strings.TrimSpace(value)); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		}
	}
	return errors.Join(errs...)
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

// parseBool accepts the spellings people put in environments.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
