// conf/consts.go hard coded constants
package conf

const (
	DefaultSampleRate = 16000 // Sample rate of the audio fed to the feature extractor
	BitDepth          = 16    // Bit depth of decoded audio
	NumChannels       = 1     // Number of channels of the audio fed to the feature extractor
)
