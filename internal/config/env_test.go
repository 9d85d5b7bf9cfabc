// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		envSet       bool
		want         string
	}{
		{"environment variable set", "TEST_STRING", "default", "from-env", true, "from-env"},
		{"environment variable not set", "TEST_STRING_UNSET", "default", "", false, "default"},
		{"environment variable empty string", "TEST_STRING_EMPTY", "default", "", true, "default"},
		{"sensitive variable (password)", "TEST_PASSWORD", "default", "secret123", true, "secret123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, ParseString(tt.key, tt.defaultValue))
		})
	}
}

func TestParseInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "forty-two")
	assert.Equal(t, 42, ParseInt("TEST_INT", 1))
	assert.Equal(t, 1, ParseInt("TEST_INT_BAD", 1))
	assert.Equal(t, 7, ParseInt("TEST_INT_UNSET", 7))
}

func TestParseInt64(t *testing.T) {
	t.Setenv("TEST_INT64", "10737418240")
	assert.Equal(t, int64(10737418240), ParseInt64("TEST_INT64", 0))
}

func TestParseDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "1m30s")
	t.Setenv("TEST_DUR_BAD", "90")
	assert.Equal(t, 90*time.Second, ParseDuration("TEST_DUR", time.Second))
	assert.Equal(t, time.Second, ParseDuration("TEST_DUR_BAD", time.Second))
}

func TestParseBool(t *testing.T) {
	for v, want := range map[string]bool{"true": true, "1": true, "YES": true, "false": false, "0": false, "no": false} {
		t.Setenv("TEST_BOOL", v)
		assert.Equal(t, want, ParseBool("TEST_BOOL", !want), v)
	}
	t.Setenv("TEST_BOOL", "maybe")
	assert.True(t, ParseBool("TEST_BOOL", true))
}

func TestParseFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "19.24")
	t.Setenv("TEST_FLOAT_BAD", "x")
	assert.Equal(t, 19.24, ParseFloat("TEST_FLOAT", 0))
	assert.Equal(t, 0.5, ParseFloat("TEST_FLOAT_BAD", 0.5))
}
