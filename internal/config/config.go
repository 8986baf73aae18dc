package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Question — один вопрос онбординга. Тип "options" означает,
// что пользователю показывается клавиатура с вариантами,
// "freeform" — свободный текстовый ввод.
type Question struct {
	ID      int      `mapstructure:"id"`
	Text    string   `mapstructure:"text"`
	Type    string   `mapstructure:"type"`
	Options []string `mapstructure:"options"`
}

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Trial struct {
		PeriodDays         int `mapstructure:"period_days"`
		ReminderDaysBefore int `mapstructure:"reminder_days_before"`
	} `mapstructure:"trial"`

	OpenAI struct {
		APIKey     string `mapstructure:"api_key"`
		Model      string `mapstructure:"model"`
		BaseURL    string `mapstructure:"base_url"`
		TimeoutSec int    `mapstructure:"timeout_sec"`
	} `mapstructure:"openai"`

	Onboarding struct {
		Questions []Question `mapstructure:"questions"`
	} `mapstructure:"onboarding"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	// Переопределение через ENV (APP_*)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault("trial.period_days", 14)
	v.SetDefault("trial.reminder_days_before", 1)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.timeout_sec", 60)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if len(c.Onboarding.Questions) == 0 {
		return c, fmt.Errorf("config: onboarding.questions is empty")
	}
	return c, nil
}
