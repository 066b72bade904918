// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "VocoCode")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "vococode.log")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "vococode.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "vococode")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "vococode")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("sampling.highvolubilitycount", 10)
	viper.SetDefault("sampling.randomcount", 20)
	viper.SetDefault("sampling.codercount", 3)

	viper.SetDefault("consensus.referencecategory", "Speech")
}
