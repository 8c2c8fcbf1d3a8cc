package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"alertcore/internal/domain"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultListen           = ":8080"
	defaultMaxBodyBytes     = 1 << 20
	defaultRetentionDays    = 30
	defaultSweepIntervalSec = 3600
	defaultLogLevel         = "info"
	defaultLogFormat        = "line"
	defaultNATSURL          = "nats://127.0.0.1:4222"
	defaultNATSSubject      = "alertcore.samples"
	defaultNATSStream       = "ALERTCORE_SAMPLES"
	defaultNATSConsumer     = "alertcore-ingest"
	defaultNATSGroup        = "alertcore-workers"
	defaultNATSAckWaitSec   = 30
	defaultNATSNackDelayMS  = 1000
	defaultNATSMaxDeliver   = -1
	defaultNATSMaxPending   = 2048
	defaultWebhookTimeout   = 10
	defaultNotifySubject    = "alertcore.alerts"
)

// Config holds service runtime settings and rule overrides.
// Params: TOML sections from one file or a merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	Ingest  IngestConfig  `toml:"ingest"`
	Notify  NotifyConfig  `toml:"notify"`
	Rules   []domain.Rule `toml:"-"`
}

// rawConfig mirrors the TOML model before runtime normalization.
// Params: decoded sections with the rule map keyed by rule type.
// Returns: raw snapshot used for normalization.
type rawConfig struct {
	Service ServiceConfig            `toml:"service"`
	Log     LogConfig                `toml:"log"`
	Ingest  IngestConfig             `toml:"ingest"`
	Notify  NotifyConfig             `toml:"notify"`
	Rule    map[string]rawRuleConfig `toml:"rule"`
}

// rawRuleConfig stores one rule body from a `[rule.<type>]` table.
// Params: rule fields except the table-key-derived rule type.
// Returns: intermediate rule body merged over the built-in definition.
type rawRuleConfig struct {
	Name            string             `toml:"name"`
	Description     string             `toml:"description"`
	Conditions      map[string]float64 `toml:"conditions"`
	DefaultSeverity string             `toml:"default_severity"`
	Enabled         *bool              `toml:"enabled"`
}

// ServiceConfig contains process-level settings.
// Params: listen address, lifecycle strictness, and retention controls.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name              string `toml:"name"`
	Listen            string `toml:"listen"`
	MaxBodyBytes      int64  `toml:"max_body_bytes"`
	StrictTransitions bool   `toml:"strict_transitions"`
	RetentionDays     int    `toml:"retention_days"`
	SweepIntervalSec  int    `toml:"sweep_interval_sec"`
}

// LogConfig selects enabled log sinks.
// Params: console and file sink settings.
// Returns: logger construction input.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig configures one log sink.
// Params: enable flag, level name, line|json format, and file path.
// Returns: sink behavior for logger setup.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// IngestConfig defines inbound sample interfaces beyond the HTTP API.
// Params: embedded NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	NATS NATSIngestConfig `toml:"nats"`
}

// NATSIngestConfig configures JetStream queue-consumer sample ingestion.
// Params: connection plus worker/ack/redelivery policy.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"subject"`
	Stream        string   `toml:"stream"`
	ConsumerName  string   `toml:"consumer_name"`
	DeliverGroup  string   `toml:"deliver_group"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// NotifyConfig selects enabled notification channels.
// Params: per-channel transport settings.
// Returns: dispatcher construction input.
type NotifyConfig struct {
	Telegram TelegramNotifyConfig `toml:"telegram"`
	Webhook  WebhookNotifyConfig  `toml:"webhook"`
	NATS     NATSNotifyConfig     `toml:"nats"`
}

// TelegramNotifyConfig configures the Telegram notification channel.
// Params: enable flag, bot token, and destination chat.
// Returns: telegram sender settings.
type TelegramNotifyConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
	ChatID  string `toml:"chat_id"`
}

// WebhookNotifyConfig configures the generic HTTP webhook channel.
// Params: enable flag, destination URL, and request timeout.
// Returns: webhook sender settings.
type WebhookNotifyConfig struct {
	Enabled    bool   `toml:"enabled"`
	URL        string `toml:"url"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// NATSNotifyConfig configures the NATS publish notification channel.
// Params: enable flag, connection URLs, and target subject.
// Returns: NATS sender settings.
type NATSNotifyConfig struct {
	Enabled bool     `toml:"enabled"`
	URL     []string `toml:"url"`
	Subject string   `toml:"subject"`
}

// ConfigSource produces one merged TOML document for a snapshot load.
// Params: none.
// Returns: raw TOML bytes and read error.
type ConfigSource interface {
	Read() ([]byte, error)
}

// fileSource reads one TOML config file.
type fileSource struct {
	path string
}

// Read reads the configured file.
// Params: none.
// Returns: file bytes or read error.
func (s fileSource) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", s.path, err)
	}
	return data, nil
}

// dirSource concatenates *.toml fragments from one directory in name order.
type dirSource struct {
	path string
}

// Read merges directory fragments into one TOML document.
// Params: none.
// Returns: concatenated fragment bytes or read error.
func (s dirSource) Read() ([]byte, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("read config dir %q: %w", s.path, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("config dir %q contains no *.toml fragments", s.path)
	}
	sort.Strings(names)

	var merged strings.Builder
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.path, name))
		if err != nil {
			return nil, fmt.Errorf("read config fragment %q: %w", name, err)
		}
		merged.Write(data)
		merged.WriteString("\n")
	}
	return []byte(merged.String()), nil
}

// FromCLI builds a config source from mutually exclusive CLI flags.
// Params: file path and directory path (exactly one must be set).
// Returns: config source or flag usage error.
func FromCLI(configFile, configDir string) (ConfigSource, error) {
	file := strings.TrimSpace(configFile)
	dir := strings.TrimSpace(configDir)
	switch {
	case file != "" && dir != "":
		return nil, errors.New("use either --config-file or --config-dir, not both")
	case file != "":
		return fileSource{path: file}, nil
	case dir != "":
		return dirSource{path: dir}, nil
	default:
		return nil, errors.New("one of --config-file or --config-dir is required")
	}
}

// LoadSnapshot reads, decodes, defaults, and validates one config snapshot.
// Params: config source.
// Returns: normalized configuration or load error.
func LoadSnapshot(source ConfigSource) (Config, error) {
	data, err := source.Read()
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes one TOML document into a normalized configuration.
// Params: raw TOML bytes.
// Returns: normalized configuration or decode/validation error.
func Parse(data []byte) (Config, error) {
	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg := Config{
		Service: raw.Service,
		Log:     raw.Log,
		Ingest:  raw.Ingest,
		Notify:  raw.Notify,
	}
	applyDefaults(&cfg)

	rules, err := normalizeRules(raw.Rule)
	if err != nil {
		return Config{}, err
	}
	cfg.Rules = rules

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields with runtime defaults.
// Params: mutable config pointer.
// Returns: config updated in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = "alertcore"
	}
	if strings.TrimSpace(cfg.Service.Listen) == "" {
		cfg.Service.Listen = defaultListen
	}
	if cfg.Service.MaxBodyBytes <= 0 {
		cfg.Service.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Service.RetentionDays <= 0 {
		cfg.Service.RetentionDays = defaultRetentionDays
	}
	if cfg.Service.SweepIntervalSec <= 0 {
		cfg.Service.SweepIntervalSec = defaultSweepIntervalSec
	}

	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	applySinkDefaults(&cfg.Log.Console)
	applySinkDefaults(&cfg.Log.File)

	nats := &cfg.Ingest.NATS
	if len(nats.URL) == 0 {
		nats.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(nats.Subject) == "" {
		nats.Subject = defaultNATSSubject
	}
	if strings.TrimSpace(nats.Stream) == "" {
		nats.Stream = defaultNATSStream
	}
	if strings.TrimSpace(nats.ConsumerName) == "" {
		nats.ConsumerName = defaultNATSConsumer
	}
	if strings.TrimSpace(nats.DeliverGroup) == "" {
		nats.DeliverGroup = defaultNATSGroup
	}
	if nats.AckWaitSec <= 0 {
		nats.AckWaitSec = defaultNATSAckWaitSec
	}
	if nats.NackDelayMS <= 0 {
		nats.NackDelayMS = defaultNATSNackDelayMS
	}
	if nats.MaxDeliver == 0 {
		nats.MaxDeliver = defaultNATSMaxDeliver
	}
	if nats.MaxAckPending <= 0 {
		nats.MaxAckPending = defaultNATSMaxPending
	}

	if cfg.Notify.Webhook.TimeoutSec <= 0 {
		cfg.Notify.Webhook.TimeoutSec = defaultWebhookTimeout
	}
	if len(cfg.Notify.NATS.URL) == 0 {
		cfg.Notify.NATS.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Notify.NATS.Subject) == "" {
		cfg.Notify.NATS.Subject = defaultNotifySubject
	}
}

// applySinkDefaults fills unset log sink fields.
// Params: mutable sink pointer.
// Returns: sink updated in place.
func applySinkDefaults(sink *LogSinkConfig) {
	if strings.TrimSpace(sink.Level) == "" {
		sink.Level = defaultLogLevel
	}
	if strings.TrimSpace(sink.Format) == "" {
		sink.Format = defaultLogFormat
	}
}

// normalizeRules converts the raw rule map into validated rule overrides.
// Params: decoded `[rule.<type>]` tables keyed by rule type.
// Returns: rule overrides sorted by rule type, or validation error.
func normalizeRules(raw map[string]rawRuleConfig) ([]domain.Rule, error) {
	rules := make([]domain.Rule, 0, len(raw))
	for ruleType, body := range raw {
		key := strings.ToLower(strings.TrimSpace(ruleType))
		if key == "" {
			return nil, errors.New("rule table key must not be empty")
		}

		rule := domain.Rule{
			RuleType:    key,
			Name:        strings.TrimSpace(body.Name),
			Description: strings.TrimSpace(body.Description),
			Conditions:  body.Conditions,
			Enabled:     true,
		}
		if body.Enabled != nil {
			rule.Enabled = *body.Enabled
		}
		if severity := strings.TrimSpace(body.DefaultSeverity); severity != "" {
			rule.DefaultSeverity = domain.Severity(strings.ToLower(severity))
			if err := rule.DefaultSeverity.Validate(); err != nil {
				return nil, fmt.Errorf("rule %q: %w", key, err)
			}
		}
		rules = append(rules, rule)
	}

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].RuleType < rules[j].RuleType
	})
	return rules, nil
}

// validate checks cross-field configuration consistency.
// Params: normalized config.
// Returns: first validation error.
func validate(cfg Config) error {
	for _, sink := range []struct {
		name string
		cfg  LogSinkConfig
	}{{"console", cfg.Log.Console}, {"file", cfg.Log.File}} {
		if !sink.cfg.Enabled {
			continue
		}
		if sink.cfg.Format != "line" && sink.cfg.Format != "json" {
			return fmt.Errorf("log.%s: unsupported format %q", sink.name, sink.cfg.Format)
		}
	}
	if cfg.Log.File.Enabled && strings.TrimSpace(cfg.Log.File.Path) == "" {
		return errors.New("log.file: path is required when enabled")
	}

	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.Token) == "" {
			return errors.New("notify.telegram: token is required when enabled")
		}
		if strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return errors.New("notify.telegram: chat_id is required when enabled")
		}
	}
	if cfg.Notify.Webhook.Enabled && strings.TrimSpace(cfg.Notify.Webhook.URL) == "" {
		return errors.New("notify.webhook: url is required when enabled")
	}
	return nil
}

// RetentionWindow converts the retention setting into a duration.
// Params: none.
// Returns: retention window for the sweeper.
func (c Config) RetentionWindow() time.Duration {
	return time.Duration(c.Service.RetentionDays) * 24 * time.Hour
}
