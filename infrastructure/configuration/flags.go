package configuration

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flags are the command line options that do not map onto a config key.
type Flags struct {
	ConfigFile string
	AddURL     string
	Help       bool
}

// ParseFlags parses args and binds the overriding flags to v.
func ParseFlags(v *viper.Viper, args []string) (Flags, *pflag.FlagSet, error) {
	var f Flags
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.StringVarP(&f.ConfigFile, "config", "c", "", "path to a config file")
	fs.StringVar(&f.AddURL, "add", "", "subscribe to the channel at this URL and exit")
	fs.BoolVarP(&f.Help, "help", "h", false, "show usage")
	fs.Bool("no-cache", false, "ignore cached videos and fetch every feed")
	fs.Int("limit", 0, "only load the first N subscriptions")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("subscriptions", "", "path to the subscriptions CSV")

	if err := fs.Parse(args); err != nil {
		return f, fs, fmt.Errorf("parse flags: %w", err)
	}

	bindings := map[string]string{
		"cache.disabled":        "no-cache",
		"feed.maxChannels":      "limit",
		"logger.level":          "log-level",
		"app.subscriptionsFile": "subscriptions",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return f, fs, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return f, fs, nil
}
