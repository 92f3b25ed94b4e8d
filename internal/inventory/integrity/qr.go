// Package integrity generates and verifies the checksummed codes printed on
// lot, asset and bin labels.
//
// A code has the form ORG|TYPE|ID|CHECKSUM where CHECKSUM is the first eight
// hex digits, upper-cased, of SHA-256 over ORG+TYPE+ID.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Type identifies what a code points at.
type Type string

const (
	TypeLot   Type = "LOT"
	TypeAsset Type = "ASSET"
	TypeBin   Type = "BIN"
)

// Rejection reasons. Callers surface these verbatim.
const (
	ReasonInvalidFormat    = "invalid_format"
	ReasonUnknownOrg       = "unknown_org"
	ReasonUnknownType      = "unknown_type"
	ReasonChecksumMismatch = "checksum_mismatch"
	// ReasonWrongType is not produced by Verify; lookups use it when a valid
	// code names a different kind of target than the one asked for.
	ReasonWrongType = "wrong_type"
)

const (
	separator      = "|"
	checksumLength = 8
)

// Result is the outcome of Verify.
type Result struct {
	Valid  bool   `json:"valid"`
	Type   Type   `json:"type,omitempty"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Service is stateless apart from the organisation code.
type Service struct {
	orgCode string
}

func NewService(orgCode string) *Service {
	return &Service{orgCode: orgCode}
}

// OrgCode returns the organisation prefix embedded in every code.
func (s *Service) OrgCode() string {
	return s.orgCode
}

// Generate returns the code for the given target.
func (s *Service) Generate(t Type, id string) string {
	return strings.Join([]string{s.orgCode, string(t), id, checksum(s.orgCode, string(t), id)}, separator)
}

// Verify parses and checks a code. The checks run in a fixed order so a
// code with several problems always reports the same reason.
func (s *Service) Verify(code string) Result {
	parts := strings.Split(code, separator)
	if len(parts) != 4 {
		return Result{Reason: ReasonInvalidFormat}
	}
	org, typ, id, sum := parts[0], parts[1], parts[2], parts[3]

	if org != s.orgCode {
		return Result{Reason: ReasonUnknownOrg}
	}
	if !knownType(Type(typ)) {
		return Result{Reason: ReasonUnknownType}
	}
	if id == "" || sum != checksum(org, typ, id) {
		return Result{Reason: ReasonChecksumMismatch}
	}

	return Result{Valid: true, Type: Type(typ), ID: id}
}

func knownType(t Type) bool {
	switch t {
	case TypeLot, TypeAsset, TypeBin:
		return true
	}
	return false
}

func checksum(org, typ, id string) string {
	sum := sha256.Sum256([]byte(org + typ + id))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:checksumLength]
}
