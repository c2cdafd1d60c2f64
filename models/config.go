package models

const DefaultCacheTTLSeconds = 172800 // 48h

type Config struct {
	Mode                string `json:"mode" mapstructure:"mode"`
	CacheTTLSeconds     int    `json:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
	CacheDir            string `json:"cache_dir" mapstructure:"cache_dir"`
	GithubToken         string `json:"github_token" mapstructure:"github_token"`
	GithubBaseURL       string `json:"github_base_url" mapstructure:"github_base_url"`
	TrustedPackagesFile string `json:"trusted_packages_file" mapstructure:"trusted_packages_file"`
	Concurrency         int    `json:"concurrency" mapstructure:"concurrency"`
}

func DefaultConfig() *Config {
	return &Config{
		Mode:            "interactive",
		CacheTTLSeconds: DefaultCacheTTLSeconds,
		Concurrency:     4,
	}
}
