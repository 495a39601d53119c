package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// BloodType is an ABO group with its Rh factor, e.g. "O+".
type BloodType string

const (
	BloodTypeAPos  BloodType = "A+"
	BloodTypeANeg  BloodType = "A-"
	BloodTypeBPos  BloodType = "B+"
	BloodTypeBNeg  BloodType = "B-"
	BloodTypeABPos BloodType = "AB+"
	BloodTypeABNeg BloodType = "AB-"
	BloodTypeOPos  BloodType = "O+"
	BloodTypeONeg  BloodType = "O-"
)

// AllBloodTypes lists every supported blood type.
var AllBloodTypes = []BloodType{
	BloodTypeAPos, BloodTypeANeg,
	BloodTypeBPos, BloodTypeBNeg,
	BloodTypeABPos, BloodTypeABNeg,
	BloodTypeOPos, BloodTypeONeg,
}

func (b BloodType) String() string { return string(b) }

func (b BloodType) IsValid() bool {
	switch b {
	case BloodTypeAPos, BloodTypeANeg, BloodTypeBPos, BloodTypeBNeg,
		BloodTypeABPos, BloodTypeABNeg, BloodTypeOPos, BloodTypeONeg:
		return true
	}
	return false
}

func ParseBloodType(s string) (BloodType, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(s), ""))
	bt := BloodType(normalized)
	if !bt.IsValid() {
		return "", fmt.Errorf("%w: invalid blood type %q", ErrValidation, s)
	}
	return bt, nil
}

// Matches "O+", "AB -", "A+" but not the "B" inside "BLOOD BAG".
var titleBloodTypePattern = regexp.MustCompile(`(?:^|[^A-Z])(AB|A|B|O)\s*([+-])`)

// BloodTypeFromTitle extracts the blood type encoded in a reward title such
// as "Blood Bag Voucher - O+". The last match wins.
func BloodTypeFromTitle(title string) (BloodType, error) {
	matches := titleBloodTypePattern.FindAllStringSubmatch(strings.ToUpper(title), -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: reward title %q does not name a blood type", ErrValidation, title)
	}
	last := matches[len(matches)-1]
	return BloodType(last[1] + last[2]), nil
}
