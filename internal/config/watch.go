package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchLogLevel re-reads logging.level whenever the config file changes and
// hands the new value to apply. Nothing happens when no config file was loaded.
func WatchLogLevel(v *viper.Viper, apply func(level string)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		apply(v.GetString("logging.level"))
	})
	v.WatchConfig()

	return true
}
