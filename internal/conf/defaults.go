// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "VoiceDetect-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "voicedetect.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)
	viper.SetDefault("main.log.rotationday", "Sunday")

	viper.SetDefault("audio.debug", false)
	viper.SetDefault("audio.samplerate", DefaultSampleRate)
	viper.SetDefault("audio.minduration", 0.5)
	viper.SetDefault("audio.maxduration", 60.0)
	viper.SetDefault("audio.trimsilence", true)
	viper.SetDefault("audio.defaulttrimdb", 30.0)

	viper.SetDefault("audio.export.debug", false)
	viper.SetDefault("audio.export.enabled", false)
	viper.SetDefault("audio.export.path", "clips/")

	viper.SetDefault("detector.debug", false)
	viper.SetDefault("detector.boundary", 0.5)
	viper.SetDefault("detector.defaultlanguage", "en")
	viper.SetDefault("detector.processingtime", false)

	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8000")
	viper.SetDefault("webserver.maxuploadmb", 25)
	viper.SetDefault("webserver.allowedorigins", []string{"*"})
	viper.SetDefault("webserver.debugroutes", false)

	viper.SetDefault("webserver.log.enabled", false)
	viper.SetDefault("webserver.log.path", "webserver.log")
	viper.SetDefault("webserver.log.rotation", RotationDaily)
	viper.SetDefault("webserver.log.maxsize", 1048576)
	viper.SetDefault("webserver.log.rotationday", "Sunday")

	viper.SetDefault("security.debug", false)
	viper.SetDefault("security.apikey.enabled", true)
	viper.SetDefault("security.apikey.header", "x-api-key")
	viper.SetDefault("security.apikey.keys", []string{})
	viper.SetDefault("security.ratelimit.enabled", true)
	viper.SetDefault("security.ratelimit.rpm", 60)
	viper.SetDefault("security.ratelimit.burst", 10)
	viper.SetDefault("security.allowsubnetbypass.enabled", false)
	viper.SetDefault("security.allowsubnetbypass.subnet", "")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.debug", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")
}
