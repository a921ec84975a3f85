package config

import "github.com/chaskitbooks/chaskit/pkg/models"

// ClientConfig is the subset of the config that clients need to render forms
// and page through books.
type ClientConfig struct {
	WhichWitchOptions   []string `json:"which_witch_options"`
	PageSize            int      `json:"page_size"`
	MaxPageSize         int      `json:"max_page_size"`
	DefaultSort         string   `json:"default_sort"`
	DefaultDirection    string   `json:"default_direction"`
	CoverStorageEnabled bool     `json:"cover_storage_enabled"`
	APIKeyRequired      bool     `json:"api_key_required"`
}

type Service struct {
	config *Config
}

func NewService(cfg *Config) *Service {
	return &Service{config: cfg}
}

func (s *Service) RetrieveClientConfig() *ClientConfig {
	return &ClientConfig{
		WhichWitchOptions:   models.WhichWitchOptions,
		PageSize:            s.config.DefaultPageSize,
		MaxPageSize:         s.config.MaxPageSize,
		DefaultSort:         s.config.DefaultSort,
		DefaultDirection:    s.config.DefaultDirection,
		CoverStorageEnabled: s.config.StorageEnabled(),
		APIKeyRequired:      s.config.APIKey != "",
	}
}
