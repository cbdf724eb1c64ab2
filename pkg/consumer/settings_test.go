package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSettings(t *testing.T) {
	t.Parallel()
	props := Properties{
		PropIssuer:    " https://props.example.com ",
		PropAudiences: "a, b,,c",
		PropAlgorithm: "ES384",
	}

	t.Run("config wins", func(t *testing.T) {
		s := ResolveSettings(&Config{TrustedIssuers: "X", Audiences: []string{"y"}, SignatureAlgorithm: "PS512"}, props)
		assert.Equal(t, Settings{TrustedIssuers: "X", Audiences: []string{"y"}, Algorithm: "PS512"}, s)
	})

	t.Run("properties fill gaps", func(t *testing.T) {
		s := ResolveSettings(&Config{}, props)
		assert.Equal(t, "https://props.example.com", s.TrustedIssuers)
		assert.Equal(t, []string{"a", "b", "c"}, s.Audiences)
		assert.Equal(t, "ES384", s.Algorithm)
	})

	t.Run("unsupported algorithm falls through", func(t *testing.T) {
		s := ResolveSettings(&Config{SignatureAlgorithm: "nope"}, Properties{PropAlgorithm: "also-nope"})
		assert.Equal(t, DefaultAlgorithm, s.Algorithm)
	})

	t.Run("empty audience property is configured", func(t *testing.T) {
		s := ResolveSettings(&Config{}, Properties{PropAudiences: " "})
		assert.NotNil(t, s.Audiences)
		assert.Empty(t, s.Audiences)
	})

	t.Run("nothing configured", func(t *testing.T) {
		s := ResolveSettings(nil, nil)
		assert.Empty(t, s.TrustedIssuers)
		assert.Nil(t, s.Audiences)
		assert.Equal(t, DefaultAlgorithm, s.Algorithm)
	})
}
