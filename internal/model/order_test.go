package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidMRN(t *testing.T) {
	assert.True(t, ValidMRN("ABC12345"))
	assert.True(t, ValidMRN("1234"))
	assert.False(t, ValidMRN("ABCD"))    // no digit
	assert.False(t, ValidMRN("A1"))      // too short
	assert.False(t, ValidMRN("AB 1234")) // whitespace inside
	assert.False(t, ValidMRN(""))
}

func TestValidOrderNo(t *testing.T) {
	assert.True(t, ValidOrderNo("NOF8843621"))
	assert.True(t, ValidOrderNo("ORD-1"))
	assert.False(t, ValidOrderNo("AB"))
	assert.False(t, ValidOrderNo(""))
}

func TestNormalizeSex(t *testing.T) {
	assert.Equal(t, "MALE", NormalizeSex("m"))
	assert.Equal(t, "MALE", NormalizeSex(" Male "))
	assert.Equal(t, "FEMALE", NormalizeSex("F"))
	assert.Equal(t, "FEMALE", NormalizeSex("female"))
	assert.Equal(t, "", NormalizeSex("unknown"))
	assert.Equal(t, "", NormalizeSex(""))
}

func TestQualityFromConfidence(t *testing.T) {
	assert.Equal(t, QualityExcellent, QualityFromConfidence(0.9))
	assert.Equal(t, QualityExcellent, QualityFromConfidence(0.85))
	assert.Equal(t, QualityGood, QualityFromConfidence(0.7))
	assert.Equal(t, QualityFair, QualityFromConfidence(0.5))
	assert.Equal(t, QualityPoor, QualityFromConfidence(0.3))
	assert.Equal(t, QualityFailed, QualityFromConfidence(0.1))
}

func TestValidNPI(t *testing.T) {
	assert.True(t, ValidNPI("1234567890"))
	assert.False(t, ValidNPI("123456789"))
	assert.False(t, ValidNPI("12345678901"))
	assert.False(t, ValidNPI("12345abcde"))
}
