package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/crowddrop/go/internal/crowddrop/chat"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/gamelink"
	"github.com/mcdev12/crowddrop/go/internal/crowddrop/round"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Codec names accepted in GAME_CODEC
const (
	CodecProtobuf = "protobuf"
	CodecNone     = "none"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port     string
	LogLevel string

	Round       round.Config
	Game        gamelink.Config
	GameCodec   string
	Chat        chat.BridgeConfig
	ChatEnabled bool

	PointerRate rate.Limit
	OverlayDir  string
	AuditPath   string
	CatalogPath string
}

// NewConfigFromEnv reads the environment, falling back to defaults for
// anything unset or unparsable.
func NewConfigFromEnv() Config {
	rc := round.DefaultConfig()
	rc.VotingDuration = getEnvAsSeconds("ROUND_SECONDS", rc.VotingDuration)
	rc.BreakDuration = getEnvAsSeconds("ROUND_BREAK_SECONDS", rc.BreakDuration)
	rc.StartDelay = getEnvAsSeconds("START_DELAY_SECONDS", rc.StartDelay)
	rc.PlacementTimeout = getEnvAsSeconds("PLACEMENT_TIMEOUT", rc.PlacementTimeout)
	rc.Warnings = getEnvAsSecondsList("WARNING_SECONDS", rc.Warnings)

	gc := gamelink.DefaultConfig()
	gc.Addr = getEnv("GAME_ADDR", gc.Addr)
	gc.ReconnectBackoff = getEnvAsSeconds("GAME_RECONNECT_SECONDS", gc.ReconnectBackoff)

	cc := chat.DefaultBridgeConfig()
	cc.URL = getEnv("NATS_URL", cc.URL)
	cc.InSubject = getEnv("CHAT_IN_SUBJECT", cc.InSubject)
	cc.OutSubject = getEnv("CHAT_OUT_SUBJECT", cc.OutSubject)

	return Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Round:       rc,
		Game:        gc,
		GameCodec:   strings.ToLower(getEnv("GAME_CODEC", CodecProtobuf)),
		Chat:        cc,
		ChatEnabled: getEnvAsBool("CHAT_ENABLED", true),
		PointerRate: rate.Limit(getEnvAsInt("POINTER_RATE", 60)),
		OverlayDir:  getEnv("OVERLAY_DIR", "."),
		AuditPath:   getEnv("AUDIT_LOG", "logs/events.jsonl"),
		CatalogPath: getEnv("CATALOG_PATH", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-numeric setting")
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-boolean setting")
	}
	return fallback
}

func getEnvAsSeconds(key string, fallback time.Duration) time.Duration {
	n := getEnvAsInt(key, -1)
	if n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// getEnvAsSecondsList parses "20,10,5".
func getEnvAsSecondsList(key string, fallback []time.Duration) []time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []time.Duration
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			log.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid duration list")
			return fallback
		}
		out = append(out, time.Duration(n)*time.Second)
	}
	return out
}
