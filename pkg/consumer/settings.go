package consumer

import (
	"strings"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/keys"
)

// Property names read from the secondary settings map.
const (
	// PropIssuer is a comma-separated list of trusted issuers.
	PropIssuer = "mp.jwt.verify.issuer"

	// PropAudiences is a comma-separated list of accepted audiences.
	PropAudiences = "mp.jwt.verify.audiences"

	// PropAlgorithm names the expected signature algorithm. Unsupported
	// names are ignored.
	PropAlgorithm = "mp.jwt.verify.publickey.algorithm"
)

// DefaultAlgorithm applies when neither the consumer nor the properties
// name a supported algorithm.
const DefaultAlgorithm = "RS256"

// Properties is the secondary settings map consulted when a [Config] field
// is unset.
type Properties map[string]string

// Settings are the effective trust settings for one validation call.
type Settings struct {
	TrustedIssuers string
	Audiences      []string
	Algorithm      string
}

// ResolveSettings layers cfg over props. Issuers and audiences come from
// cfg when set and from props otherwise. The algorithm is the first
// supported one of cfg, props, and [DefaultAlgorithm].
func ResolveSettings(cfg *Config, props Properties) Settings {
	var s Settings
	if cfg != nil {
		s.TrustedIssuers = cfg.TrustedIssuers
		s.Audiences = cfg.Audiences
		if supported(cfg.SignatureAlgorithm) {
			s.Algorithm = cfg.SignatureAlgorithm
		}
	}

	if s.TrustedIssuers == "" {
		s.TrustedIssuers = strings.TrimSpace(props[PropIssuer])
	}
	if s.Audiences == nil {
		if v, ok := props[PropAudiences]; ok {
			s.Audiences = splitList(v)
		}
	}
	if s.Algorithm == "" {
		if alg := strings.TrimSpace(props[PropAlgorithm]); supported(alg) {
			s.Algorithm = alg
		} else {
			s.Algorithm = DefaultAlgorithm
		}
	}
	return s
}

func supported(alg string) bool {
	return alg != "" && keys.FamilyOf(alg) != keys.FamilyUnknown
}

// splitList splits a comma-separated value into trimmed, non-empty entries.
// The result is non-nil so a configured but empty property still counts as
// configured.
func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
