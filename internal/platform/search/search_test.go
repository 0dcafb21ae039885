package search

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/platform/apperr"
)

var memberFields = map[string]Field{
	"name":      {Column: "m.name", Kind: KindText},
	"code":      {Column: "m.code", Kind: KindText},
	"status":    {Column: "m.status", Kind: KindExact, Values: []string{"active", "inactive"}},
	"parent_id": {Column: "m.parent_id", Kind: KindUUID},
}

func TestParse_DefaultsAndModifiers(t *testing.T) {
	q := url.Values{
		"name":        {"jean"},
		"code:prefix": {"Nadra0001"},
		"status":      {"active"},
		"limit":       {"10"},
		"sort":        {"-name"},
	}
	preds, err := Parse(q, memberFields)
	require.NoError(t, err)
	assert.Equal(t, []Predicate{
		{Field: "code", Op: OpPrefix, Value: "Nadra0001"},
		{Field: "name", Op: OpContains, Value: "jean"},
		{Field: "status", Op: OpEq, Value: "active"},
	}, preds)
}

func TestParse_Rejections(t *testing.T) {
	q := url.Values{
		"phone":           {"123"},
		"status:contains": {"act"},
		"parent_id":       {"nope"},
		"name:regex":      {".*"},
	}
	_, err := Parse(q, memberFields)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperr.ErrValidation))

	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "phone")
	assert.Contains(t, ve.Fields, "status:contains")
	assert.Contains(t, ve.Fields, "parent_id")
	assert.Contains(t, ve.Fields, "name:regex")
}

func TestParse_EnumValues(t *testing.T) {
	_, err := Parse(url.Values{"status": {"Deleted"}}, memberFields)
	assert.Error(t, err)
}

func TestParse_SkipsBlankValues(t *testing.T) {
	preds, err := Parse(url.Values{"name": {"  "}}, memberFields)
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, EscapeLike(`50%_off\`))
}

func TestQuery_Apply(t *testing.T) {
	org := uuid.New()
	q := NewQuery("members m", "m.id, m.code")
	q.Add("m.organization_id = $1", org)
	q.Apply([]Predicate{
		{Field: "code", Op: OpPrefix, Value: "Nadra_1"},
		{Field: "name", Op: OpContains, Value: "50%"},
		{Field: "name", Op: OpEq, Value: "Jean"},
		{Field: "status", Op: OpEq, Value: "active"},
	}, memberFields)
	q.ApplySort("-code,bogus", "m.created_at DESC", memberFields)

	assert.Equal(t,
		"SELECT COUNT(*) FROM members m WHERE 1=1 AND m.organization_id = $1 AND m.code ILIKE $2 AND m.name ILIKE $3 AND lower(m.name) = lower($4) AND m.status = $5",
		q.CountSQL())
	assert.Equal(t, []interface{}{org, `Nadra\_1%`, `%50\%%`, "Jean", "active"}, q.CountArgs())
	assert.Equal(t,
		"SELECT m.id, m.code FROM members m WHERE 1=1 AND m.organization_id = $1 AND m.code ILIKE $2 AND m.name ILIKE $3 AND lower(m.name) = lower($4) AND m.status = $5 ORDER BY m.code DESC LIMIT $6 OFFSET $7",
		q.DataSQL())
	assert.Equal(t, []interface{}{org, `Nadra\_1%`, `%50\%%`, "Jean", "active", 20, 40}, q.DataArgs(20, 40))
}

func TestQuery_DefaultSort(t *testing.T) {
	q := NewQuery("invoices", "id")
	q.ApplySort("", "created_at DESC", nil)
	assert.Equal(t, "SELECT id FROM invoices WHERE 1=1 ORDER BY created_at DESC LIMIT $1 OFFSET $2", q.DataSQL())
}
