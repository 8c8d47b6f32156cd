package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr string
	}{
		{in: "12.50", want: 1250},
		{in: "1", want: 100},
		{in: " 0.01 ", want: 1},
		{in: "1000.1", want: 100010},
		{in: "0", wantErr: "must be positive"},
		{in: "-3", wantErr: "must be positive"},
		{in: "1.005", wantErr: "more than two decimal places"},
		{in: "ten", wantErr: "invalid amount"},
		{in: "", wantErr: "invalid amount"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.50", formatAmount(1250))
	assert.Equal(t, "0.01", formatAmount(1))
}
