package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/kitbuilder587/search-proxy/internal/domain"
)

var ErrProvidersFile = errors.New("invalid providers file")

// ProviderOverride заменяет список зеркал для пары (engine, kind).
type ProviderOverride struct {
	Engine    string           `yaml:"engine"`
	Kind      string           `yaml:"kind"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

type EndpointConfig struct {
	URL    string            `yaml:"url"`
	Params map[string]string `yaml:"params"`
}

type providersFile struct {
	Providers []ProviderOverride `yaml:"providers"`
}

func LoadProviders(path string) ([]ProviderOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrProvidersFile, path, err)
	}
	return ParseProviders(data)
}

func ParseProviders(data []byte) ([]ProviderOverride, error) {
	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvidersFile, err)
	}

	seen := make(map[string]bool, len(file.Providers))
	for i, p := range file.Providers {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: providers[%d]: %v", ErrProvidersFile, i, err)
		}
		key := p.Engine + "/" + p.Kind
		if seen[key] {
			return nil, fmt.Errorf("%w: providers[%d]: duplicate %s", ErrProvidersFile, i, key)
		}
		seen[key] = true
	}

	return file.Providers, nil
}

func (p ProviderOverride) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Kind, validation.Required, validation.By(func(value interface{}) error {
			if !domain.ResultKind(p.Kind).IsValid() {
				return errors.New("unknown kind")
			}
			return nil
		})),
		validation.Field(&p.Engine, validation.Required, validation.By(func(value interface{}) error {
			if !domain.Engine(p.Engine).SupportedFor(domain.ResultKind(p.Kind)) {
				return fmt.Errorf("engine not supported for kind %q", p.Kind)
			}
			return nil
		})),
		validation.Field(&p.Endpoints, validation.Required),
	)
}

func (e EndpointConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.URL, validation.Required, validation.By(isHTTPURL)),
	)
}

func isHTTPURL(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) url")
	}
	return nil
}
