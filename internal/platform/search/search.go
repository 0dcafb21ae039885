// Package search turns list-endpoint query strings into explicit predicates
// and builds parameterized SQL from them.
package search

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
)

// Op is a comparison applied by a predicate.
type Op string

const (
	OpEq       Op = "eq"
	OpContains Op = "contains"
	OpPrefix   Op = "prefix"
)

// Kind controls which ops a field accepts and how values are checked.
type Kind int

const (
	KindText  Kind = iota // eq, contains (default), prefix; case-insensitive
	KindExact             // eq only, e.g. status or kind enums
	KindUUID              // eq only, value must parse as a UUID
)

// Field maps a public search name onto a column.
type Field struct {
	Column string
	Kind   Kind
	// Values, when set, restricts KindExact fields to an enumeration.
	Values []string
}

// Predicate is one validated search condition.
type Predicate struct {
	Field string
	Op    Op
	Value string
}

// reserved query parameters are paging or sorting, never predicates.
var reserved = map[string]bool{"limit": true, "offset": true, "sort": true, "regen": true}

// Parse reads "field=value" or "field:op=value" pairs from query. Fields not
// in allowed, unsupported ops and malformed values all produce a
// ValidationError. Predicates are returned sorted by field for stable SQL.
func Parse(query url.Values, allowed map[string]Field) ([]Predicate, error) {
	verr := &apperr.ValidationError{}
	var preds []Predicate

	for key, values := range query {
		if reserved[key] {
			continue
		}
		name, opStr, hasOp := strings.Cut(key, ":")
		field, ok := allowed[name]
		if !ok {
			verr.Add(key, "unknown search field")
			continue
		}
		op := defaultOp(field.Kind)
		if hasOp {
			op = Op(opStr)
		}
		if err := checkOp(field, op); err != nil {
			verr.Add(key, err.Error())
			continue
		}
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if err := checkValue(field, v); err != nil {
				verr.Add(key, err.Error())
				continue
			}
			preds = append(preds, Predicate{Field: name, Op: op, Value: v})
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	sort.SliceStable(preds, func(i, j int) bool {
		if preds[i].Field != preds[j].Field {
			return preds[i].Field < preds[j].Field
		}
		return preds[i].Value < preds[j].Value
	})
	return preds, nil
}

func defaultOp(k Kind) Op {
	if k == KindText {
		return OpContains
	}
	return OpEq
}

func checkOp(f Field, op Op) error {
	switch op {
	case OpEq:
		return nil
	case OpContains, OpPrefix:
		if f.Kind == KindText {
			return nil
		}
		return fmt.Errorf("operator %q not supported on this field", op)
	default:
		return fmt.Errorf("unknown operator %q", op)
	}
}

func checkValue(f Field, v string) error {
	switch f.Kind {
	case KindUUID:
		if _, err := uuid.Parse(v); err != nil {
			return fmt.Errorf("must be a UUID")
		}
	case KindExact:
		if len(f.Values) == 0 {
			return nil
		}
		for _, allowed := range f.Values {
			if v == allowed {
				return nil
			}
		}
		return fmt.Errorf("must be one of: %s", strings.Join(f.Values, ", "))
	}
	return nil
}

// EscapeLike escapes LIKE wildcards so user input matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
