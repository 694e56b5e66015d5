package domain

import dErrors "carebridge/pkg/domain-errors"

// ProfileType classifies a marketplace party. Families are the demand side;
// organizations and caregivers are providers whose contact-surface actions
// are metered.
type ProfileType string

const (
	ProfileTypeFamily       ProfileType = "family"
	ProfileTypeOrganization ProfileType = "organization"
	ProfileTypeCaregiver    ProfileType = "caregiver"
)

var validProfileTypes = map[ProfileType]bool{
	ProfileTypeFamily:       true,
	ProfileTypeOrganization: true,
	ProfileTypeCaregiver:    true,
}

// ParseProfileType constructs a ProfileType from external input.
func ParseProfileType(s string) (ProfileType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "profile type cannot be empty")
	}
	t := ProfileType(s)
	if !validProfileTypes[t] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported profile type: "+s)
	}
	return t, nil
}

func (t ProfileType) IsValid() bool { return validProfileTypes[t] }

// IsProvider reports whether the party is on the supply side.
func (t ProfileType) IsProvider() bool {
	return t == ProfileTypeOrganization || t == ProfileTypeCaregiver
}

func (t ProfileType) String() string { return string(t) }
