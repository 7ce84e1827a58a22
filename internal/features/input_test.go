package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/niruguard/niruguard/internal/model"
)

func TestFromInput(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		v    model.Version
		want model.FeatureRecord
	}{
		{
			name: "v3 new supplier direct round",
			in:   Input{Amount: 2_000_000, Method: "Direct", SupplierAwardCount: 1, SuspiciousTiming: true},
			v:    model.V3,
			want: model.FeatureRecord{Amount: 2_000_000, IsDirectProcurement: 1, IsRoundAmount: 1, SuspiciousTiming: 1, SupplierAwardCount: 1, NewSupplierDirectDeal: 1},
		},
		{
			name: "v2 established supplier",
			in:   Input{Amount: 1500, Method: "open", SupplierAwardCount: 12},
			v:    model.V2,
			want: model.FeatureRecord{Amount: 1500, SupplierAwardCount: 12},
		},
		{
			name: "unknown award count defaults to new",
			in:   Input{Amount: 10, Method: "direct"},
			v:    model.V3,
			want: model.FeatureRecord{Amount: 10, IsDirectProcurement: 1, SupplierAwardCount: 1, NewSupplierDirectDeal: 1},
		},
		{
			name: "v1 ignores supplier and timing",
			in:   Input{Amount: 5000, Method: "direct", SupplierAwardCount: 1, SuspiciousTiming: true, MissingDataCount: 2},
			v:    model.V1,
			want: model.FeatureRecord{Amount: 5000, IsDirectProcurement: 1, IsRoundAmount: 1, MissingDataCount: 2},
		},
		{
			name: "negative amount clamps to zero",
			in:   Input{Amount: -5000, Method: "open"},
			v:    model.V1,
			want: model.FeatureRecord{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromInput(tt.in, tt.v))
		})
	}
}
