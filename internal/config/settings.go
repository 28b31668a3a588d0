package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the optional YAML file for values that do not fit comfortably in
// environment variables.
//
//	postfinance:
//	  rfc5646_conversion_table:
//	    en: en_US
//	    fr-ch: fr_CH
//	  extra_configs:
//	    TP: https://shop.example.com/payment-template.html
type Settings struct {
	PostFinance struct {
		ConversionTable  map[string]string `yaml:"rfc5646_conversion_table"`
		ExtraConfigs     map[string]string `yaml:"extra_configs"`
		FallbackLanguage string            `yaml:"fallback_language"`
	} `yaml:"postfinance"`
}

func LoadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return &s, nil
}

// apply copies file values into pf. Environment variables read afterwards
// take precedence.
func (s *Settings) apply(pf *PostFinanceConfig) {
	for k, v := range s.PostFinance.ConversionTable {
		pf.LanguageTable[k] = v
	}
	for k, v := range s.PostFinance.ExtraConfigs {
		pf.ExtraFields[k] = v
	}
	if s.PostFinance.FallbackLanguage != "" && os.Getenv("POSTFINANCE_FALLBACK_LANGUAGE") == "" {
		pf.FallbackLanguage = s.PostFinance.FallbackLanguage
	}
}
