package bootstrap

import (
	"os"
	"strconv"
)

type Config struct {
	ServerAddr string
	LogLevel   string
	Version    string

	LocalSTTAddress string

	RemoteEndpoint string
	RemoteAPIKey   string

	LanguageCode               string
	EnableSpeakerDiarization   bool
	MinSpeakerCount            int
	MaxSpeakerCount            int
	EnableAutomaticPunctuation bool
	MaxAlternatives            int

	SegmentTimeoutMs      int
	SegmentMaxLengthChars int
	SilenceWindowMs       int

	FlushIntervalSec int
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Version:    getEnv("VERSION", "dev"),

		LocalSTTAddress: getEnv("LOCAL_STT_ADDRESS", "localhost:8089"),

		RemoteEndpoint: getEnv("REMOTE_STT_ENDPOINT", "https://speech.googleapis.com/v1/speech:recognize"),
		RemoteAPIKey:   getEnv("REMOTE_STT_API_KEY", ""),

		LanguageCode:               getEnv("LANGUAGE_CODE", "en-US"),
		EnableSpeakerDiarization:   getEnvBool("ENABLE_SPEAKER_DIARIZATION", false),
		MinSpeakerCount:            getEnvInt("MIN_SPEAKER_COUNT", 2),
		MaxSpeakerCount:            getEnvInt("MAX_SPEAKER_COUNT", 6),
		EnableAutomaticPunctuation: getEnvBool("ENABLE_AUTOMATIC_PUNCTUATION", true),
		MaxAlternatives:            getEnvInt("MAX_ALTERNATIVES", 1),

		SegmentTimeoutMs:      getEnvInt("SEGMENT_TIMEOUT_MS", 1000),
		SegmentMaxLengthChars: getEnvInt("SEGMENT_MAX_LENGTH_CHARS", 200),
		SilenceWindowMs:       getEnvInt("SILENCE_WINDOW_MS", 2000),

		FlushIntervalSec: getEnvInt("REMOTE_FLUSH_INTERVAL_SEC", 10),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
