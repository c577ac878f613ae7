// Package config loads application configuration and the externally
// tunable rules data (breaker ladder, inverter classification tokens).
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

// DatabasePath returns the configured SQLite path, defaulting under the
// user config directory.
func DatabasePath() string {
	if v := viper.GetString("database.path"); v != "" {
		return ExpandPath(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "bosforge.db"
	}
	return filepath.Join(home, ".local", "share", "bosforge", "bosforge.db")
}

// Rules carries the domain data the matching algorithms consume. The ladder
// and token lists are vendor knowledge that changes without code changes, so
// they ship as defaults and may be overridden in the config file.
type Rules struct {
	// BreakerLadder is the ascending list of standard breaker ratings used
	// to round minimum amp requirements up to a legal size.
	BreakerLadder []int

	// HybridTokens mark an inverter make/model as hybrid (DC battery bus).
	HybridTokens []string

	// GridFormingTokens mark a battery inverter (grid-forming/following).
	GridFormingTokens []string

	// MicroinverterMakes are manufacturers assumed to be microinverters
	// when no explicit system type is recorded.
	MicroinverterMakes []string

	// LandingPoints maps multi-system combine-point names to the field
	// values the persistence schema expects.
	LandingPoints map[string]string
}

// SetRuleDefaults registers the shipped rules data with viper. Called once
// from CLI init before any config file is read.
func SetRuleDefaults() {
	viper.SetDefault("rules.breaker_ladder", []int{
		15, 20, 25, 30, 35, 40, 45, 50, 60, 70, 80, 90, 100,
		110, 125, 150, 175, 200, 225, 250, 300, 350, 400,
	})
	viper.SetDefault("rules.hybrid_tokens", []string{"hybrid", "goodwe", "growatt", "sol-ark", "solark"})
	viper.SetDefault("rules.grid_forming_tokens", []string{"forming", "powerwall", "backup interface", "agate", "franklin", "tesla"})
	viper.SetDefault("rules.microinverter_makes", []string{"enphase", "hoymiles", "apsystems", "ap systems", "iq"})
	viper.SetDefault("rules.landing_points", map[string]string{
		"Sol-Ark":      "solArk",
		"Main Panel A": "meterA",
		"Main Panel B": "meterB",
		"Sub Panel B":  "subPanelB",
	})
}

// LoadRules reads the rules data from viper.
func LoadRules() Rules {
	return Rules{
		BreakerLadder:      viper.GetIntSlice("rules.breaker_ladder"),
		HybridTokens:       viper.GetStringSlice("rules.hybrid_tokens"),
		GridFormingTokens:  viper.GetStringSlice("rules.grid_forming_tokens"),
		MicroinverterMakes: viper.GetStringSlice("rules.microinverter_makes"),
		LandingPoints:      viper.GetStringMapString("rules.landing_points"),
	}
}
