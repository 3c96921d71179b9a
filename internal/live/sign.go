package live

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/glizzus/livesfx/internal/generator"
)

const (
	signatureMethod  = "HMAC-SHA256"
	signatureVersion = "1.0"
)

// Signer computes the authentication headers every API call carries.
type Signer struct {
	accessKey string
	secret    []byte
	now       func() time.Time
	nonces    generator.Generator[string]
}

type SignerOption func(*Signer)

func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

func WithNonces(g generator.Generator[string]) SignerOption {
	return func(s *Signer) {
		s.nonces = g
	}
}

func NewSigner(accessKey, accessSecret string, opts ...SignerOption) *Signer {
	s := &Signer{
		accessKey: accessKey,
		secret:    []byte(accessSecret),
		now:       time.Now,
		nonces:    &generator.UUIDV4Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Headers returns the signed headers for a request with the given body.
// The signature is the hex HMAC-SHA256, keyed by the access secret, of the
// x-bili-* headers written as sorted "name:value" lines.
func (s *Signer) Headers(body []byte) (http.Header, error) {
	nonce, err := s.nonces.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signature nonce: %w", err)
	}

	digest := md5.Sum(body)
	signed := map[string]string{
		"x-bili-accesskeyid":       s.accessKey,
		"x-bili-content-md5":       hex.EncodeToString(digest[:]),
		"x-bili-signature-method":  signatureMethod,
		"x-bili-signature-nonce":   nonce,
		"x-bili-signature-version": signatureVersion,
		"x-bili-timestamp":         strconv.FormatInt(s.now().Unix(), 10),
	}

	header := http.Header{}
	lines := make([]string, 0, len(signed))
	for _, name := range slices.Sorted(maps.Keys(signed)) {
		lines = append(lines, name+":"+signed[name])
		header.Set(name, signed[name])
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strings.Join(lines, "\n")))

	header.Set("Authorization", hex.EncodeToString(mac.Sum(nil)))
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	return header, nil
}
