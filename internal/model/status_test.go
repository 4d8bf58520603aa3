package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Pole Permission: Approved", "pole permission: approved"},
		{"Pole  Permissions:   Approved", "pole permission: approved"},
		{"Home Sign Ups: Approved & Installed", "home signup: approved & installed"},
		{"HOME SIGN UP: APPROVED", "home signup: approved"},
		{"  Pole Planted  ", "pole planted"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeStatus(tc.in), "input %q", tc.in)
	}
}

func TestStatusBucket(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Pole Permission", "pole permission"},
		{"pole permission: approved", "pole permission"},
		{"Pole Permissions:   Declined", "pole permission"},
		{"Home Sign Ups: Approved & Installed", "home signup"},
		{"Pole Planted", "pole planted"},
		{"", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusBucket(tc.in), "input %q", tc.in)
	}
}

func TestStatusBucket_QualifierVariantsShareBucket(t *testing.T) {
	// A bare milestone and its ":<qualifier>" variants must contend for
	// the same ledger entry.
	assert.Equal(t, StatusBucket("Pole Permission"), StatusBucket("pole permission: approved"))
	assert.Equal(t, StatusBucket("Pole Permission"), StatusBucket("Pole Permissions: Declined"))
}

func TestStatusBucket_Idempotent(t *testing.T) {
	for _, in := range []string{"Pole Permission: Approved", "Home Sign Ups: Approved", "Pole Planted"} {
		once := StatusBucket(in)
		assert.Equal(t, once, StatusBucket(once), "not idempotent for %q", in)
	}
}

func TestNormalizeStatus_Idempotent(t *testing.T) {
	inputs := []string{
		"Pole Permissions: Approved",
		"Home Sign Ups: Approved & Installed",
		"Home Sign Up: Declined",
		"Pole Planted",
	}

	for _, in := range inputs {
		once := NormalizeStatus(in)
		assert.Equal(t, once, NormalizeStatus(once), "not idempotent for %q", in)
	}
}
