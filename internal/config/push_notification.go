package config

type PushConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ProjectID   string `yaml:"project_id"`
	Credentials string `yaml:"credentials_file"`
}

func loadPushConfig() *PushConfig {
	return &PushConfig{
		Enabled:     getEnvAsBool("PUSH_ENABLED", false),
		ProjectID:   getEnv("FCM_PROJECT_ID", ""),
		Credentials: getEnv("FCM_CREDENTIALS_FILE", ""),
	}
}
