package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttrsInt(t *testing.T) {
	tests := []struct {
		name   string
		value  Value
		want   int64
		wantOK bool
	}{
		{"int", Int(100), 100, true},
		{"numeric string", String("4094"), 4094, true},
		{"max int64", String("9223372036854775807"), 9223372036854775807, true},
		{"overflow", String("92233720368547758070"), 0, false},
		{"empty string", String(""), 0, false},
		{"not a number", String("12a"), 0, false},
		{"bool", Bool(true), 0, false},
		{"missing", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := Attrs{}
			if tt.value != nil {
				attrs["segmentation_id"] = tt.value
			}
			got, ok := attrs.Int("segmentation_id")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
