package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAnimalNumber(t *testing.T) {
	require.Equal(t, "A-123", NormalizeAnimalNumber("  a-123 "))
	require.Equal(t, "M-1", NormalizeAnimalNumber("m-1"))
	require.Equal(t, "", NormalizeAnimalNumber("   "))
}

func TestSyntheticAnimalIDIsNegative(t *testing.T) {
	id := SyntheticAnimalID("M-1", 42)
	require.Negative(t, id)
}

func TestSyntheticAnimalIDIsStable(t *testing.T) {
	first := SyntheticAnimalID("M-1", 42)
	second := SyntheticAnimalID("M-1", 42)
	require.Equal(t, first, second)

	// Normalization happens before hashing
	require.Equal(t, first, SyntheticAnimalID(" m-1 ", 42))
}

func TestSyntheticAnimalIDVariesByTenant(t *testing.T) {
	require.NotEqual(t, SyntheticAnimalID("M-1", 1), SyntheticAnimalID("M-1", 2))
	require.NotEqual(t, SyntheticAnimalID("M-1", 1), SyntheticAnimalID("M-2", 1))
}
