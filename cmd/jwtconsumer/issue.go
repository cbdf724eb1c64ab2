package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/keys"
	"github.com/StricklySoft/stricklysoft-jwt/pkg/token"
)

type issueFlags struct {
	alg        string
	secretFile string
	keyFile    string
	issuer     string
	subject    string
	audiences  []string
	amr        []string
	kid        string
	ttl        time.Duration
	claims     map[string]string
}

func newIssueCmd(_ *cli) *cobra.Command {
	f := &issueFlags{}
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token for testing consumers",
		Example: `  jwtconsumer issue --alg HS256 --secret-file secret.txt --iss https://auth.test --aud orders-api
  jwtconsumer issue --alg RS256 --key-file signer.pem --kid k1 --ttl 1h --claim role=admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := f.signingKey()
			if err != nil {
				return err
			}
			b := token.NewBuilder().Issuer(f.issuer).ExpiresIn(f.ttl)
			if f.subject != "" {
				b = b.Subject(f.subject)
			}
			if len(f.audiences) > 0 {
				b = b.Audience(f.audiences...)
			}
			if len(f.amr) > 0 {
				b = b.AuthMethods(f.amr...)
			}
			if f.kid != "" {
				b = b.KeyID(f.kid)
			}
			for k, v := range f.claims {
				b = b.Claim(k, v)
			}
			raw, err := b.Sign(f.alg, key)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), raw)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.alg, "alg", "HS256", "signing algorithm")
	flags.StringVar(&f.secretFile, "secret-file", "", "file holding the HMAC secret")
	flags.StringVar(&f.keyFile, "key-file", "", "PEM private key for RS, PS, ES and EdDSA algorithms")
	flags.StringVar(&f.issuer, "iss", "", "issuer claim")
	flags.StringVar(&f.subject, "sub", "", "subject claim")
	flags.StringSliceVar(&f.audiences, "aud", nil, "audience claim (repeatable)")
	flags.StringSliceVar(&f.amr, "amr", nil, "authentication methods (repeatable)")
	flags.StringVar(&f.kid, "kid", "", "key id header")
	flags.DurationVar(&f.ttl, "ttl", 10*time.Minute, "lifetime; sets exp")
	flags.StringToStringVar(&f.claims, "claim", nil, "extra string claim as name=value (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("secret-file", "key-file")
	return cmd
}

func (f *issueFlags) signingKey() (any, error) {
	family := keys.FamilyOf(f.alg)
	switch {
	case family == keys.FamilyUnknown:
		return nil, fmt.Errorf("unsupported algorithm %q", f.alg)
	case family == keys.FamilyHMAC:
		if f.secretFile == "" {
			return nil, fmt.Errorf("--secret-file is required for %s", f.alg)
		}
		data, err := os.ReadFile(f.secretFile)
		if err != nil {
			return nil, err
		}
		return []byte(strings.TrimSpace(string(data))), nil
	}

	if f.keyFile == "" {
		return nil, fmt.Errorf("--key-file is required for %s", f.alg)
	}
	data, err := os.ReadFile(f.keyFile)
	if err != nil {
		return nil, err
	}
	switch family {
	case keys.FamilyRSA, keys.FamilyRSAPSS:
		return jwt.ParseRSAPrivateKeyFromPEM(data)
	case keys.FamilyECDSA:
		return jwt.ParseECPrivateKeyFromPEM(data)
	default:
		return jwt.ParseEdPrivateKeyFromPEM(data)
	}
}
