package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/reliefhub/reliefhub-backend/pkg/actor"
	"github.com/reliefhub/reliefhub-backend/pkg/errors"
)

// Operator is the person recorded on ledger and asset rows
type Operator struct {
	Name string  `json:"name" validate:"required"`
	ID   *string `json:"id,omitempty"`
}

// OperatorFrom converts the request actor
func OperatorFrom(a *actor.Actor) Operator {
	return Operator{Name: a.DisplayName(), ID: a.IDPtr()}
}

func (o Operator) validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return errors.ValidationField("operator", "is required")
	}
	return nil
}

// sameOperator reports whether two operators are the same person. Ids win
// when both sides carry one.
func sameOperator(aName string, aID *string, b Operator) bool {
	if aID != nil && b.ID != nil {
		return *aID == *b.ID
	}
	return strings.EqualFold(strings.TrimSpace(aName), strings.TrimSpace(b.Name))
}

func nonEmpty(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func minLength(s string, n int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= n
}

func strPtr(s string) *string { return &s }

func nowPtr(t time.Time) *time.Time { return &t }
