package logger

import (
	"log/slog"
	"strings"
	"sync"
)

// ModuleConfig holds per-package log levels. Names are dotted and
// hierarchical: a level set on "runstore" covers "runstore.redis"
// unless the child sets its own.
type ModuleConfig struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	levels       map[string]slog.Level
}

// NewModuleConfig returns an empty ModuleConfig that answers
// defaultLevel for every module.
func NewModuleConfig(defaultLevel slog.Level) *ModuleConfig {
	return &ModuleConfig{
		defaultLevel: defaultLevel,
		levels:       make(map[string]slog.Level),
	}
}

// SetModuleLevel pins the level for one module ("variant",
// "cmd.modelconf", ...).
func (m *ModuleConfig) SetModuleLevel(module string, level slog.Level) {
	m.mu.Lock()
	m.levels[module] = level
	m.mu.Unlock()
}

// SetDefaultLevel changes the level returned for modules with no
// explicit entry anywhere in their hierarchy.
func (m *ModuleConfig) SetDefaultLevel(level slog.Level) {
	m.mu.Lock()
	m.defaultLevel = level
	m.mu.Unlock()
}

// LevelFor resolves the level for a module by trying the name itself
// and then each ancestor: "cmd.modelconf.sweep", "cmd.modelconf",
// "cmd", default.
func (m *ModuleConfig) LevelFor(module string) slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for {
		if level, ok := m.levels[module]; ok {
			return level
		}
		dot := strings.LastIndexByte(module, '.')
		if dot < 0 {
			return m.defaultLevel
		}
		module = module[:dot]
	}
}

// globalModuleConfig backs GetModuleConfig and is replaced by Configure.
var globalModuleConfig = NewModuleConfig(slog.LevelInfo)

// GetModuleConfig returns the module configuration currently in
// effect. Exposed mainly for tests.
func GetModuleConfig() *ModuleConfig {
	return globalModuleConfig
}

// Output formats accepted by LoggingConfigSpec.Format.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// LoggingConfigSpec is the declarative shape of the logging section of
// the CLI configuration. The CLI constructs it from viper values;
// keeping it a plain struct avoids an import cycle with cmd.
type LoggingConfigSpec struct {
	DefaultLevel string
	Format       string // FormatJSON or FormatText
	CommonFields map[string]string
	Modules      []ModuleLoggingSpec
}

// ModuleLoggingSpec pins the level for one module in a
// LoggingConfigSpec.
type ModuleLoggingSpec struct {
	Name   string
	Level  string
	Fields map[string]string
}

// Configure rebuilds the global logger from a declarative spec. A nil
// spec is a no-op, and a handler installed through SetLogger always
// takes precedence.
func Configure(cfg *LoggingConfigSpec) error {
	if cfg == nil || installed != nil {
		return nil
	}

	defaultLevel := slog.LevelInfo
	if cfg.DefaultLevel != "" {
		defaultLevel = ParseLevel(cfg.DefaultLevel)
	}

	moduleConfig := NewModuleConfig(defaultLevel)
	for _, mod := range cfg.Modules {
		moduleConfig.SetModuleLevel(mod.Name, ParseLevel(mod.Level))
	}
	globalModuleConfig = moduleConfig

	common := make([]slog.Attr, 0, len(cfg.CommonFields))
	for k, v := range cfg.CommonFields {
		common = append(common, slog.String(k, v))
	}

	install(defaultLevel, cfg.Format == FormatJSON, moduleConfig, common)
	return nil
}

// install builds the handler chain described by Configure and makes it
// the process default. Per-module filtering is only worth the stack
// walks when at least one module level is pinned.
func install(level slog.Level, useJSON bool, moduleConfig *ModuleConfig, common []slog.Attr) {
	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	if useJSON {
		base = slog.NewJSONHandler(output, opts)
	} else {
		base = slog.NewTextHandler(output, opts)
	}

	var handler slog.Handler
	if len(moduleConfig.levels) > 0 {
		handler = NewModuleHandler(base, moduleConfig, common...)
	} else {
		handler = NewContextHandler(base, common...)
	}

	DefaultLogger = slog.New(handler)
	slog.SetDefault(DefaultLogger)
}
