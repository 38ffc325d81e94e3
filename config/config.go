package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/moyu-x/organize/internal"
)

type Config struct {
	Logging struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"logging"`
	Organize struct {
		Policy        string `mapstructure:"policy"`
		RulesFile     string `mapstructure:"rules_file"`
		Recursive     bool   `mapstructure:"recursive"`
		SkipHidden    bool   `mapstructure:"skip_hidden"`
		DetectContent bool   `mapstructure:"detect_content"`
		Workers       int    `mapstructure:"workers"`
		Lock          bool   `mapstructure:"lock"`
	} `mapstructure:"organize"`
}

// organize 段的键直接对应 ORGANIZE_<KEY> 环境变量，例如 ORGANIZE_POLICY；
// logging 段保持 ORGANIZE_LOGGING_<KEY>。
var organizeKeys = []string{
	"policy",
	"rules_file",
	"recursive",
	"skip_hidden",
	"detect_content",
	"workers",
	"lock",
}

// Load 读取 config.yaml 与 ORGANIZE_ 前缀的环境变量。
// v 为 nil 时使用新的 viper 实例；配置文件不存在时返回默认值。
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("$HOME/.organize")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/organize")

	v.SetEnvPrefix("organize")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range organizeKeys {
		if err := v.BindEnv("organize."+key, "ORGANIZE_"+strings.ToUpper(key)); err != nil {
			return nil, &internal.ConfigError{Err: err}
		}
	}

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &internal.ConfigError{Path: v.ConfigFileUsed(), Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &internal.ConfigError{Path: v.ConfigFileUsed(), Err: err}
	}

	return &cfg, nil
}

// SetDefaults 写入默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("organize.policy", string(internal.PolicySkip))
	v.SetDefault("organize.rules_file", "")
	v.SetDefault("organize.recursive", false)
	v.SetDefault("organize.skip_hidden", false)
	v.SetDefault("organize.detect_content", false)
	v.SetDefault("organize.workers", internal.DefaultWorkers)
	v.SetDefault("organize.lock", true)
}
