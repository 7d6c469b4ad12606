// Package config assembles runtime configuration from optional .env files
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/signalsfoundry/satnav/core"
	"github.com/signalsfoundry/satnav/internal/logging"
	"github.com/signalsfoundry/satnav/internal/observability"
)

// Config is everything the navsim binary needs to start.
type Config struct {
	Navigation  core.NavigationConfig
	NetworkPath string
	Logging     logging.Config
	Tracing     observability.TracingConfig
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Navigation: core.DefaultNavigationConfig(),
		Logging:    logging.Config{Level: "info", Format: "text", Compress: true},
		Tracing:    observability.DefaultTracingConfig(),
	}
}

// Load reads the given .env files, if they exist, and then the environment.
// Values already present in the environment win over .env files. Every
// unparseable variable is reported in the returned error; the other fields are
// still filled in.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Default(), fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable lookup.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	nav := &cfg.Navigation
	p.boolVar("NAV_ENABLED", &nav.Enabled)
	p.floatVar("NAV_OFF_ROUTE_TOLERANCE", &nav.OffRouteTolerance)
	p.floatVar("NAV_MANEUVER_DISTANCE", &nav.ManeuverDistance)
	p.floatVar("NAV_ARRIVAL_DISTANCE", &nav.ArrivalDistance)
	p.intVar("NAV_LOOKBACK_POINTS", &nav.LookbackPoints)
	p.floatVar("NAV_STRAIGHT_DOT", &nav.StraightDot)
	p.intVar("NAV_PATH_CACHE_SIZE", &nav.PathCacheSize)
	p.stringVar("NAV_NETWORK_PATH", &cfg.NetworkPath)

	p.stringVar("LOG_LEVEL", &cfg.Logging.Level)
	p.stringVar("LOG_FORMAT", &cfg.Logging.Format)
	p.stringVar("LOG_FILE", &cfg.Logging.File)

	tr := &cfg.Tracing
	p.boolVar("NAV_TRACING_ENABLED", &tr.Enabled)
	p.stringVar("NAV_TRACING_EXPORTER", &tr.Exporter)
	p.stringVar("NAV_TRACING_SERVICE_NAME", &tr.ServiceName)
	p.stringVar("NAV_OTLP_ENDPOINT", &tr.Endpoint)
	p.floatVar("NAV_TRACING_SAMPLE_RATIO", &tr.SampleRatio)
	if tr.SampleRatio < 0 || tr.SampleRatio > 1 {
		p.fail("NAV_TRACING_SAMPLE_RATIO", fmt.Errorf("%v outside [0,1]", tr.SampleRatio))
		tr.SampleRatio = observability.DefaultTracingConfig().SampleRatio
	}
	tr.Exporter = strings.ToLower(tr.Exporter)

	cfg.Navigation = cfg.Navigation.ApplyDefaults()
	return cfg, errors.Join(p.errs...)
}

type parser struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (p *parser) value(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) fail(key string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
}

func (p *parser) stringVar(key string, dst *string) {
	if v, ok := p.value(key); ok {
		*dst = v
	}
}

func (p *parser) boolVar(key string, dst *bool) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return
	}
	*dst = b
}

func (p *parser) intVar(key string, dst *int) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return
	}
	*dst = n
}

func (p *parser) floatVar(key string, dst *float64) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return
	}
	*dst = f
}
