package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"(555) 123-4567", "+15551234567", true},
		{"555.123.4567", "+15551234567", true},
		{"+44 20 7946 0958", "+442079460958", true},
		{"0044 20 7946 0958", "+442079460958", true},
		{"442079460958", "+442079460958", true},
		{"12345", "", false},
		{"", "", false},
		{"call me", "", false},
		{"00", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Phone(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhoneWithCountry(t *testing.T) {
	got, ok := PhoneWithCountry("020 7946 095", "+44")
	assert.True(t, ok)
	assert.Equal(t, "+440207946095", got)
}

func TestPhone_Idempotent(t *testing.T) {
	for _, raw := range []string{"(555) 123-4567", "0044 20 7946 0958", "+81 3-1234-5678"} {
		once, ok := Phone(raw)
		assert.True(t, ok)
		twice, ok := Phone(once)
		assert.True(t, ok)
		assert.Equal(t, once, twice)
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"1990-03-03", "1990-03-03", true},
		{"March 3, 1990", "1990-03-03", true},
		{"March 3rd, 1990", "1990-03-03", true},
		{"03/03/1990", "1990-03-03", true},
		{"1990-03-03T10:00:00Z", "1990-03-03", true},
		{"not a date", "", false},
		{"12/", "", false},
		{"1/2/", "", false},
		{"1.2.3.4.5", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Date(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
