package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overrides settings from environment variables.
// Unset or empty variables leave the current value alone.
func (c *Config) ApplyEnv() {
	if port := getEnvInt("PORT"); port > 0 {
		c.Server.Addr = ":" + strconv.Itoa(port)
	}
	if v := getEnv("TASKBOARD_DATA_FILE"); v != "" {
		c.Store.Path = v
	}
	if v, ok := os.LookupEnv("TASKBOARD_TEMPLATE_FILE"); ok {
		c.Store.TemplatePath = strings.TrimSpace(v)
	}
	if v := getEnv("TASKBOARD_STATIC_DIR"); v != "" {
		c.Static.Dir = v
	}
	if v := getEnv("TASKBOARD_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getEnv("TASKBOARD_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func getEnvInt(key string) int {
	val := getEnv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}
