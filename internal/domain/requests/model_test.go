package requests

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joffreynk/nadra-mutuality-sub000/internal/domain/coverage"
)

func TestRequest_Status(t *testing.T) {
	tests := []struct {
		name     string
		statuses []ItemStatus
		want     Status
	}{
		{"no items", nil, StatusEmpty},
		{"all pending", []ItemStatus{ItemPending, ItemReverted}, StatusPending},
		{"some approved", []ItemStatus{ItemApproved, ItemPending}, StatusPartiallyApproved},
		{"all approved", []ItemStatus{ItemApproved, ItemApproved}, StatusApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Request{}
			for _, st := range tt.statuses {
				r.Items = append(r.Items, &Item{Status: st})
			}
			assert.Equal(t, tt.want, r.Status())
		})
	}
}

func TestRequest_ApprovedLines(t *testing.T) {
	r := &Request{Items: []*Item{
		{Quantity: 2, Status: ItemApproved, UnitPrice: price("10.00")},
		{Quantity: 1, Status: ItemApproved, UnitPrice: price("5.005")},
		{Quantity: 4, Status: ItemPending},
	}}
	lines := r.ApprovedLines()
	require.Len(t, lines, 2)

	split := coverage.Compute(lines, decimal.NewFromInt(80))
	assert.Equal(t, int64(2501), split.TotalCents)
	assert.Equal(t, int64(2001), split.InsurerShareCents)
	assert.Equal(t, int64(500), split.MemberShareCents)
}

func TestRequest_JSONIncludesStatus(t *testing.T) {
	r := &Request{Code: "PH-0A1B2C3D", Items: []*Item{{Status: ItemApproved}}}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"Approved"`)
	assert.Contains(t, string(b), `"code":"PH-0A1B2C3D"`)
}

func TestNewCode(t *testing.T) {
	ph := NewCode(KindPharmacy)
	tr := NewCode(KindTreatment)
	assert.True(t, strings.HasPrefix(ph, "PH-"))
	assert.True(t, strings.HasPrefix(tr, "TR-"))
	assert.Len(t, ph, 11)
	assert.Equal(t, strings.ToUpper(ph), ph)
}
