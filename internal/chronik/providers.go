package chronik

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one indexer host.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type providersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// LoadProviders reads an ordered provider list from a yaml file.
//
//	providers:
//	  - name: chronik-e-cash
//	    url: https://chronik.e.cash
//	    timeout: 5s
func LoadProviders(path string) ([]ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read providers file")
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parse providers file")
	}

	for i, p := range file.Providers {
		if len(strings.TrimSpace(p.URL)) == 0 {
			return nil, errors.Errorf("provider %d has no url", i)
		}
	}

	return file.Providers, nil
}

// ParseURLs converts a comma separated url list into provider configs.
func ParseURLs(urls string) []ProviderConfig {
	var result []ProviderConfig
	for _, u := range strings.Split(urls, ",") {
		u = strings.TrimSpace(u)
		if len(u) == 0 {
			continue
		}
		result = append(result, ProviderConfig{Name: u, URL: u})
	}
	return result
}

// NewFallbackFromConfig creates providers in order, using timeout for any provider that doesn't
// specify its own.
func NewFallbackFromConfig(configs []ProviderConfig, timeout time.Duration) *Fallback {
	fetchers := make([]Fetcher, 0, len(configs))
	for _, c := range configs {
		t := c.Timeout
		if t <= 0 {
			t = timeout
		}
		fetchers = append(fetchers, NewProvider(c.Name, c.URL, t))
	}
	return NewFallback(fetchers...)
}
