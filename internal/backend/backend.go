// Package backend assembles a remote service factory from the application
// configuration, shared by the command-line frontends.
package backend

import (
	"fmt"
	"time"

	"github.com/rzg777/filesearch/config"
	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/logging"
	"github.com/rzg777/filesearch/remote"
	"github.com/rzg777/filesearch/remote/gemini"
	"github.com/rzg777/filesearch/remote/openai"
)

// Factory returns a credential-to-backend constructor for the configured
// remote. The "mock" backend ignores the credential and is meant for local
// experimentation.
func Factory(cfg *config.AppConfig, logger logging.Logger) (func(credential []byte) (core.RemoteService, error), error) {
	switch cfg.Remote.Backend {
	case "gemini", "":
		return func(credential []byte) (core.RemoteService, error) {
			return gemini.NewClient(string(credential), func(o *gemini.Options) {
				if cfg.Remote.BaseURL != "" {
					o.BaseURL = cfg.Remote.BaseURL
				}
				o.Timeout = time.Duration(cfg.Remote.TimeoutSecs) * time.Second
				o.MaxRetries = cfg.Remote.MaxRetries
				o.Logger = logger
			})
		}, nil
	case "openai":
		return func(credential []byte) (core.RemoteService, error) {
			return openai.NewClient(string(credential), func(o *openai.Options) {
				o.BaseURL = cfg.Remote.BaseURL
				o.Logger = logger
			})
		}, nil
	case "mock":
		svc := remote.NewMockService()
		return func([]byte) (core.RemoteService, error) { return svc, nil }, nil
	default:
		return nil, fmt.Errorf("unknown remote backend: %s", cfg.Remote.Backend)
	}
}
