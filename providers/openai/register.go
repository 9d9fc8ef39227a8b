package openai

import (
	"github.com/ember-labs/relay/core"
	"github.com/ember-labs/relay/providers"
)

func init() {
	providers.Register("openai", func(apiKey, baseURL string) core.Provider {
		return New(apiKey, WithBaseURL(baseURL))
	})
}
