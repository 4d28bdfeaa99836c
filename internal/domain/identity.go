package domain

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// NormalizeAnimalNumber uppercases and trims a tenant-scoped animal number
func NormalizeAnimalNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}

// SyntheticAnimalID derives a stable negative identifier for an animal that
// has no registration row, from its number and tenant. The id is confined to
// the negative integer space so it can never collide with a real registration
// id.
func SyntheticAnimalID(animalNumber string, companyID int64) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d", NormalizeAnimalNumber(animalNumber), companyID)

	id := int64(h.Sum64() & 0x7fffffffffffffff)
	if id == 0 {
		id = 1
	}
	return -id
}
