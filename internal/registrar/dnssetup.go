package registrar

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

// DNSSetup issues short-lived signed redirects into the external DNS
// product so it can trust which user and domain the hand-off is for.
type DNSSetup struct {
	baseURL string
	key     *ecdsa.PrivateKey
}

// NewDNSSetup parses the ES384 signing key. Returns nil when no base URL is
// configured; callers treat a nil setup as "hand-off disabled".
func NewDNSSetup(baseURL, keyPEM string) (*DNSSetup, error) {
	if baseURL == "" {
		return nil, nil
	}
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(keyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse dns setup key: %w", err)
	}
	return &DNSSetup{baseURL: baseURL, key: key}, nil
}

// RedirectURL signs a one-minute token naming the user and domain and
// returns the hand-off URL.
func (d *DNSSetup) RedirectURL(userID id.UserID, domain string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodES384, jwt.MapClaims{
		"iss":    "urn:registrar:domains",
		"aud":    "urn:registrar:dns",
		"sub":    userID.String(),
		"domain": domain,
		"iat":    now.Unix(),
		"nbf":    now.Unix(),
		"exp":    now.Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString(d.key)
	if err != nil {
		return "", fmt.Errorf("sign dns setup token: %w", err)
	}
	return d.baseURL + "?" + url.Values{"token": {signed}}.Encode(), nil
}

// DNSSetupRedirect builds the signed hand-off URL for an owned domain.
func (s *Service) DNSSetupRedirect(ctx context.Context, userID id.UserID, domainID id.DomainID) (string, error) {
	if s.dnsSetup == nil {
		return "", dErrors.New(dErrors.CodeNotFound, "dns setup is not available")
	}
	d, err := s.ownedDomain(ctx, userID, domainID)
	if err != nil {
		return "", err
	}
	uri, err := s.dnsSetup.RedirectURL(userID, d.Name)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build dns setup redirect")
	}
	return uri, nil
}
