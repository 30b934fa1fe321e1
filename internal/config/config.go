// Package config 执行引擎的运行时配置
//
// 配置文件为 TOML，分为 [jit]、[profile]、[log] 三节。文件中缺省的键保留
// DefaultConfig 的取值。
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 常量定义
const (
	ConfigFileName = "mcjit.toml" // 配置文件名
)

// Config 运行时配置
type Config struct {
	JIT     JITConfig     `toml:"jit"`
	Profile ProfileConfig `toml:"profile"`
	Log     LogConfig     `toml:"log"`
}

// JITConfig 执行层级与编译开关
type JITConfig struct {
	EnableInterpreter      bool `toml:"enable_interpreter"`
	EnableJit              bool `toml:"enable_jit"`
	EnableLightCompiler    bool `toml:"enable_light_compiler"`
	EnableInlineCache      bool `toml:"enable_inline_cache"`
	EnableParallelJit      bool `toml:"enable_parallel_jit"`
	EnableSpeculativeJit   bool `toml:"enable_speculative_jit"`
	EnableGuardElimination bool `toml:"enable_guard_elimination"`
	EnableDeoptimization   bool `toml:"enable_deoptimization"`
	EnableDirectCalls      bool `toml:"enable_direct_calls"`
	EnableTypeInference    bool `toml:"enable_type_inference"`

	// HotCallThreshold 函数转入编译执行的调用次数
	HotCallThreshold int64 `toml:"hot_call_threshold"`
	// MaxSignatureArgs 参与签名特化的实参个数上限
	MaxSignatureArgs int `toml:"max_signature_args"`
}

// ProfileConfig 剖析与计数
type ProfileConfig struct {
	EnableProfiling     bool `toml:"enable_profiling"`
	ProfileExecuteTime  bool `toml:"profile_execute_time"`
	ProfileFunctionTime bool `toml:"profile_function_time"`
	ProfileOpFrequency  bool `toml:"profile_op_frequency"`
	ProfileOpTime       bool `toml:"profile_op_time"`
	ProfileJitTime      bool `toml:"profile_jit_time"`
	CountCalls          bool `toml:"count_calls"`

	MaxMissCount     int     `toml:"max_miss_count"`
	HotnessThreshold float64 `toml:"hotness_threshold"`
	MaxProfileSlots  int     `toml:"max_profile_slots"`
}

// LogConfig 日志
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		JIT: JITConfig{
			EnableInterpreter:      true,
			EnableJit:              true,
			EnableGuardElimination: true,
			EnableDeoptimization:   true,
			EnableTypeInference:    true,
			HotCallThreshold:       100,
			MaxSignatureArgs:       8,
		},
		Profile: ProfileConfig{
			EnableProfiling:  true,
			MaxMissCount:     3,
			HotnessThreshold: 0.8,
			MaxProfileSlots:  2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load 从文件加载配置，未出现的键取默认值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parse(data)
}

// LoadFromString 从字符串加载配置
func LoadFromString(content string) (*Config, error) {
	return parse([]byte(content))
}

func parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 检查取值范围，返回全部问题
func (c *Config) Validate() error {
	var err error
	if c.JIT.HotCallThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("jit.hot_call_threshold must not be negative, got %d", c.JIT.HotCallThreshold))
	}
	if c.JIT.MaxSignatureArgs < 0 {
		err = multierr.Append(err, fmt.Errorf("jit.max_signature_args must not be negative, got %d", c.JIT.MaxSignatureArgs))
	}
	if !c.JIT.EnableInterpreter && !c.JIT.EnableJit {
		err = multierr.Append(err, fmt.Errorf("at least one of jit.enable_interpreter and jit.enable_jit must be set"))
	}
	if c.Profile.MaxMissCount < 0 {
		err = multierr.Append(err, fmt.Errorf("profile.max_miss_count must not be negative, got %d", c.Profile.MaxMissCount))
	}
	if c.Profile.HotnessThreshold <= 0 || c.Profile.HotnessThreshold > 1 {
		err = multierr.Append(err, fmt.Errorf("profile.hotness_threshold must be in (0, 1], got %g", c.Profile.HotnessThreshold))
	}
	if c.Profile.MaxProfileSlots < 1 {
		err = multierr.Append(err, fmt.Errorf("profile.max_profile_slots must be at least 1, got %d", c.Profile.MaxProfileSlots))
	}
	if _, lerr := zapcore.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", lerr))
	}
	return err
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// NewLogger 按日志配置创建 zap 日志器
func NewLogger(c LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	var zc zap.Config
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
