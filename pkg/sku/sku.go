// Package sku encodes and parses the fixed-format product SKU.
//
// A SKU is four fields joined by "-": a 3 character prefix, a 4 character
// category, a 3 character product code and a version tag "V" followed by two
// digits (V01..V99), e.g. "TPC-PUMP-A01-V02".
package sku

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	Separator = "-"

	PrefixLen   = 3
	CategoryLen = 4
	CodeLen     = 3

	MinVersion = 1
	MaxVersion = 99
)

var (
	ErrMalformedSKU        = errors.New("MALFORMED_SKU")
	ErrInvalidFieldLength  = errors.New("INVALID_FIELD_LENGTH")
	ErrVersionOutOfRange   = errors.New("VERSION_OUT_OF_RANGE")
	ErrVersionLimitReached = errors.New("VERSION_LIMIT_REACHED")
)

var (
	pattern = regexp.MustCompile(`^([A-Z0-9]{3})-([A-Z0-9]{4})-([A-Z0-9]{3})-V(\d{2})$`)
	field   = regexp.MustCompile(`^[A-Z0-9]+$`)
)

// Parts holds the decoded fields of a SKU.
type Parts struct {
	Prefix   string `json:"prefix"`
	Category string `json:"category"`
	Code     string `json:"code"`
	Version  int    `json:"version"`
}

// Encode builds a SKU from its fields. Fields are upper-cased before validation.
func Encode(prefix, category, code string, version int) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	category = strings.ToUpper(strings.TrimSpace(category))
	code = strings.ToUpper(strings.TrimSpace(code))

	if err := checkField("prefix", prefix, PrefixLen); err != nil {
		return "", err
	}
	if err := checkField("category", category, CategoryLen); err != nil {
		return "", err
	}
	if err := checkField("code", code, CodeLen); err != nil {
		return "", err
	}
	if version < MinVersion || version > MaxVersion {
		return "", fmt.Errorf("%w: version %d not in [%d, %d]", ErrVersionOutOfRange, version, MinVersion, MaxVersion)
	}
	return fmt.Sprintf("%s-%s-%s-V%02d", prefix, category, code, version), nil
}

// Decode parses a SKU into its fields.
func Decode(s string) (Parts, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Parts{}, fmt.Errorf("%w: %q", ErrMalformedSKU, s)
	}
	v, err := strconv.Atoi(m[4])
	if err != nil || v < MinVersion {
		return Parts{}, fmt.Errorf("%w: %q has invalid version tag", ErrMalformedSKU, s)
	}
	return Parts{Prefix: m[1], Category: m[2], Code: m[3], Version: v}, nil
}

// IncrementVersion returns the SKU with its version bumped by one.
func IncrementVersion(s string) (string, error) {
	p, err := Decode(s)
	if err != nil {
		return "", err
	}
	if p.Version >= MaxVersion {
		return "", fmt.Errorf("%w: %s", ErrVersionLimitReached, s)
	}
	return Encode(p.Prefix, p.Category, p.Code, p.Version+1)
}

// Validate reports whether s is a well-formed SKU.
func Validate(s string) error {
	_, err := Decode(s)
	return err
}

func checkField(name, value string, width int) error {
	if len(value) != width {
		return fmt.Errorf("%w: %s must be %d characters, got %d", ErrInvalidFieldLength, name, width, len(value))
	}
	if !field.MatchString(value) {
		return fmt.Errorf("%w: %s %q must be alphanumeric", ErrMalformedSKU, name, value)
	}
	return nil
}
