//go:build unit

package dbguard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetenvOrDefault_WithValue(t *testing.T) {
	key := "DBGUARD_TEST_STRING"
	t.Setenv(key, "configured")

	assert.Equal(t, "configured", GetenvOrDefault(key, "default"))
}

func TestGetenvOrDefault_WithDefault(t *testing.T) {
	assert.Equal(t, "default", GetenvOrDefault("DBGUARD_TEST_MISSING", "default"))
}

func TestGetenvOrDefault_WithEmptyValue(t *testing.T) {
	key := "DBGUARD_TEST_EMPTY"
	t.Setenv(key, "")

	assert.Equal(t, "default", GetenvOrDefault(key, "default"))
}

func TestGetenvOrDefault_WithWhitespace(t *testing.T) {
	key := "DBGUARD_TEST_WHITESPACE"
	t.Setenv(key, "   ")

	assert.Equal(t, "default", GetenvOrDefault(key, "default"))
}

func TestGetenvBoolOrDefault_True(t *testing.T) {
	key := "DBGUARD_TEST_BOOL"
	t.Setenv(key, "true")

	assert.True(t, GetenvBoolOrDefault(key, false))
}

func TestGetenvBoolOrDefault_False(t *testing.T) {
	key := "DBGUARD_TEST_BOOL"
	t.Setenv(key, "false")

	assert.False(t, GetenvBoolOrDefault(key, true))
}

func TestGetenvBoolOrDefault_MissingKey(t *testing.T) {
	assert.True(t, GetenvBoolOrDefault("DBGUARD_TEST_BOOL_MISSING", true))
}

func TestGetenvBoolOrDefault_InvalidValue(t *testing.T) {
	key := "DBGUARD_TEST_BOOL"
	t.Setenv(key, "not-a-bool")

	assert.True(t, GetenvBoolOrDefault(key, true))
}

func TestGetenvIntOrDefault_ValidInt(t *testing.T) {
	key := "DBGUARD_TEST_INT"
	t.Setenv(key, "5432")

	assert.Equal(t, 5432, GetenvIntOrDefault(key, 3306))
}

func TestGetenvIntOrDefault_NegativeInt(t *testing.T) {
	key := "DBGUARD_TEST_INT"
	t.Setenv(key, "-1")

	assert.Equal(t, -1, GetenvIntOrDefault(key, 3306))
}

func TestGetenvIntOrDefault_MissingKey(t *testing.T) {
	assert.Equal(t, 3306, GetenvIntOrDefault("DBGUARD_TEST_INT_MISSING", 3306))
}

func TestGetenvIntOrDefault_InvalidValue(t *testing.T) {
	key := "DBGUARD_TEST_INT"
	t.Setenv(key, "forty-two")

	assert.Equal(t, 42, GetenvIntOrDefault(key, 42))
}

func TestGetenvDurationOrDefault_ValidDuration(t *testing.T) {
	key := "DBGUARD_TEST_DURATION"
	t.Setenv(key, "45s")

	assert.Equal(t, 45*time.Second, GetenvDurationOrDefault(key, time.Minute))
}

func TestGetenvDurationOrDefault_InvalidValue(t *testing.T) {
	key := "DBGUARD_TEST_DURATION"
	t.Setenv(key, "soon")

	assert.Equal(t, time.Minute, GetenvDurationOrDefault(key, time.Minute))
}

func TestGetenvDurationOrDefault_MissingKey(t *testing.T) {
	assert.Equal(t, 30*time.Second, GetenvDurationOrDefault("DBGUARD_TEST_DURATION_MISSING", 30*time.Second))
}
