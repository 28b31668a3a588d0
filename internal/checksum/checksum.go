// Package checksum implements the PostFinance SHA-IN/SHA-OUT signature scheme.
//
// A signature is computed over every field with a non-empty value, sorted by
// upper-cased key, as the concatenation of UPPER(key) "=" value secret, hashed
// and hex encoded in upper case.
package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

const (
	// OutboundSignatureKey is the form field the outbound signature is sent in.
	OutboundSignatureKey = "SHASign"
	// InboundSignatureKey is the parameter the gateway signs notifications with.
	InboundSignatureKey = "SHASIGN"
)

var (
	ErrUnknownAlgorithm  = errors.New("unknown hash algorithm")
	ErrSignatureMissing  = errors.New("signature missing")
	ErrRequiredField     = errors.New("required field missing")
	ErrSignatureMismatch = errors.New("signature mismatch")
)

type Algorithm string

const (
	SHA1   Algorithm = "SHA-1"
	SHA256 Algorithm = "SHA-256"
	SHA512 Algorithm = "SHA-512"
)

// ParseAlgorithm accepts the names used in the PostFinance back office
// ("SHA-1", "SHA-256", "SHA-512") as well as the undashed forms.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "")) {
	case "", "SHA1":
		return SHA1, nil
	case "SHA256":
		return SHA256, nil
	case "SHA512":
		return SHA512, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
}

// SHAOutParameters is the set of notification parameters the gateway includes
// in the SHA-OUT signature, keyed by upper-cased name.
var SHAOutParameters = map[string]struct{}{
	"AAVCHECK":   {},
	"ACCEPTANCE": {},
	"AMOUNT":     {},
	"BRAND":      {},
	"CARDNO":     {},
	"CCCTY":      {},
	"CN":         {},
	"CURRENCY":   {},
	"CVCCHECK":   {},
	"ECI":        {},
	"ED":         {},
	"IP":         {},
	"IPCTY":      {},
	"NCERROR":    {},
	"ORDERID":    {},
	"PAYID":      {},
	"PM":         {},
	"STATUS":     {},
	"TRXDATE":    {},
	"VC":         {},
}

// RequiredInboundFields must be present and non-empty for a notification to be
// verifiable at all.
var RequiredInboundFields = []string{"orderID", "amount", "PAYID"}

// Digest builds the string the gateway hashes. Empty values and any signature
// field are left out.
func Digest(fields *FieldSet, secret string) string {
	var b strings.Builder
	for _, k := range fields.SortedKeys() {
		if strings.EqualFold(k, InboundSignatureKey) {
			continue
		}
		v := fields.Value(k)
		if v == "" {
			continue
		}
		b.WriteString(strings.ToUpper(k))
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteString(secret)
	}
	return b.String()
}

// Sign computes the upper-case hex signature of fields.
func Sign(fields *FieldSet, secret string, algo Algorithm) (string, error) {
	h, err := algo.newHash()
	if err != nil {
		return "", err
	}
	h.Write([]byte(Digest(fields, secret)))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// Check verifies the SHASIGN parameter of an inbound notification. It never
// panics; every failure is reported as an error wrapping one of the package
// sentinels.
func Check(fields *FieldSet, secret string, algo Algorithm) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSignatureMismatch, r)
		}
	}()

	if fields == nil {
		return ErrSignatureMissing
	}
	received, ok := fields.Lookup(InboundSignatureKey)
	if !ok || received == "" {
		return ErrSignatureMissing
	}
	for _, key := range RequiredInboundFields {
		if v, ok := fields.Lookup(key); !ok || v == "" {
			return fmt.Errorf("%w: %s", ErrRequiredField, key)
		}
	}

	signed := NewFieldSet()
	for _, k := range fields.Keys() {
		if _, ok := SHAOutParameters[strings.ToUpper(k)]; ok {
			signed.Set(k, fields.Value(k))
		}
	}

	computed, err := Sign(signed, secret, algo)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToUpper(received))) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

// Verify reports whether the notification carries a valid signature.
func Verify(fields *FieldSet, secret string, algo Algorithm) bool {
	return Check(fields, secret, algo) == nil
}

// Signer holds the two PostFinance passphrases: SHA-IN signs what we send,
// SHA-OUT verifies what the gateway sends back.
type Signer struct {
	algo   Algorithm
	shaIn  string
	shaOut string
}

func NewSigner(algo Algorithm, shaIn, shaOut string) (*Signer, error) {
	if _, err := algo.newHash(); err != nil {
		return nil, err
	}
	if shaIn == "" || shaOut == "" {
		return nil, errors.New("both SHA-IN and SHA-OUT passphrases are required")
	}
	return &Signer{algo: algo, shaIn: shaIn, shaOut: shaOut}, nil
}

func (s *Signer) Algorithm() Algorithm {
	return s.algo
}

func (s *Signer) SignOutbound(fields *FieldSet) (string, error) {
	return Sign(fields.Without(OutboundSignatureKey), s.shaIn, s.algo)
}

// Attach signs fields and stores the result under SHASign, replacing any
// previous signature.
func (s *Signer) Attach(fields *FieldSet) error {
	sig, err := s.SignOutbound(fields)
	if err != nil {
		return err
	}
	for _, k := range fields.Keys() {
		if strings.EqualFold(k, OutboundSignatureKey) {
			fields.Delete(k)
		}
	}
	fields.Set(OutboundSignatureKey, sig)
	return nil
}

func (s *Signer) CheckInbound(fields *FieldSet) error {
	return Check(fields, s.shaOut, s.algo)
}

func (s *Signer) VerifyInbound(fields *FieldSet) bool {
	return s.CheckInbound(fields) == nil
}
