package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Registry field names as returned by Enhetsregisteret.
const (
	FieldName         = "navn"
	FieldIdentifier   = "organisasjonsnummer"
	FieldEmployees    = "antallAnsatte"
	FieldIndustry     = "naeringskode1"
	FieldIndustryCode = "kode"
	FieldAddress      = "forretningsadresse"
	FieldMunicipality = "kommune"
	FieldFounded      = "stiftelsesdato"
	FieldDeleted      = "slettedato"
)

// Entity is a raw registry record. Accessors read it defensively: a missing or
// mistyped field yields the zero value (or ok=false), never a panic.
type Entity map[string]any

func (e Entity) Name() string { return e.str(FieldName) }

func (e Entity) Identifier() string { return e.str(FieldIdentifier) }

func (e Entity) Founded() string { return e.str(FieldFounded) }

// IndustryCode returns naeringskode1.kode or "".
func (e Entity) IndustryCode() string {
	return nested(e, FieldIndustry).str(FieldIndustryCode)
}

func (e Entity) Municipality() string {
	return nested(e, FieldAddress).str(FieldMunicipality)
}

// Deleted reports whether the record carries a deletion date.
func (e Entity) Deleted() bool {
	v, ok := e[FieldDeleted]
	return ok && v != nil
}

// EmployeeCount returns the employee count when it is present and a
// non-negative whole number.
func (e Entity) EmployeeCount() (int, bool) {
	v, ok := e[FieldEmployees]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, n >= 0
	case int32:
		return int(n), n >= 0
	case int64:
		return int(n), n >= 0
	case float64:
		if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || i < 0 {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func (e Entity) str(key string) string {
	if e == nil {
		return ""
	}
	s, _ := e[key].(string)
	return s
}

func nested(e Entity, key string) Entity {
	if e == nil {
		return nil
	}
	switch m := e[key].(type) {
	case map[string]any:
		return Entity(m)
	case Entity:
		return m
	}
	return nil
}
