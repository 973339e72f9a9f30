package observability

import (
	"strings"

	"github.com/smallbiznis/recurra/internal/config"
)

// Config is the resolved telemetry identity shared by logs, traces and metrics.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	t := cfg.Telemetry

	protocol := t.OTLPProtocol
	switch protocol {
	case "grpc", "http", "http/protobuf":
	default:
		protocol = "grpc"
	}
	ratio := t.SamplingRatio
	if ratio < 0 || ratio > 1 {
		ratio = 0.1
	}

	return Config{
		ServiceName:          firstNonEmpty(cfg.AppName, "recurra"),
		Environment:          firstNonEmpty(cfg.Environment, "unknown"),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             firstNonEmpty(t.LogLevel, "info"),
		LogFormat:            firstNonEmpty(t.LogFormat, "json"),
		OtelEnabled:          t.OTLPEnabled && strings.TrimSpace(t.OTLPEndpoint) != "",
		OtelExporterEndpoint: strings.TrimSpace(t.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
	}
}

// Debug turns on request body logging and stack traces.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
