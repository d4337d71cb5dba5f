package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Role gates access to the admin surface.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Availability is when a user is free to swap skills.
type Availability string

const (
	AvailabilityWeekends Availability = "Weekends"
	AvailabilityEvenings Availability = "Evenings"
	AvailabilityWeekdays Availability = "Weekdays"
)

// Valid reports whether a is one of the known availability values.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityWeekends, AvailabilityEvenings, AvailabilityWeekdays:
		return true
	}
	return false
}

// Rating is one counterparty's score for a user after a completed swap.
type Rating struct {
	RaterID  string `json:"raterId"`
	Value    int    `json:"value"`
	Feedback string `json:"feedback"`
}

// User is a marketplace member. AvgRating is derived from Ratings and
// persisted alongside them.
type User struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	PasswordHash  string       `json:"-"` // never serialize
	Location      string       `json:"location"`
	ProfilePhoto  string       `json:"profilePhoto"`
	SkillsOffered []string     `json:"skillsOffered"`
	SkillsWanted  []string     `json:"skillsWanted"`
	Availability  Availability `json:"availability"`
	IsPublic      bool         `json:"isPublic"`
	IsBanned      bool         `json:"isBanned"`
	Role          Role         `json:"role"`
	Ratings       []Rating     `json:"ratings"`
	AvgRating     float64      `json:"avgRating"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Offers reports whether skill is in the user's offered list.
func (u *User) Offers(skill string) bool {
	for _, s := range u.SkillsOffered {
		if s == skill {
			return true
		}
	}
	return false
}

// PlaceholderPhoto builds the default avatar URL from the first letter of name.
func PlaceholderPhoto(name, color string) string {
	letter := "U"
	if n := strings.TrimSpace(name); n != "" {
		letter = strings.ToUpper(string([]rune(n)[0]))
	}
	return fmt.Sprintf("https://placehold.co/100x100/%s/ffffff?text=%s", color, letter)
}

// NormalizeSkills trims entries, drops blanks and removes duplicates while
// keeping first-seen order.
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// RegisterRequest is the JSON body for POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks presence and shape of the registration fields.
func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if r.Name == "" || r.Email == "" || r.Password == "" {
		return fmt.Errorf("%w: name, email, and password are required", ErrValidation)
	}
	if !emailPattern.MatchString(r.Email) {
		return fmt.Errorf("%w: please add a valid email", ErrValidation)
	}
	if len(r.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	return nil
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest is the JSON body for PUT /api/users/profile.
// Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Name          *string       `json:"name"`
	Location      *string       `json:"location"`
	ProfilePhoto  *string       `json:"profilePhoto"`
	SkillsOffered *[]string     `json:"skillsOffered"`
	SkillsWanted  *[]string     `json:"skillsWanted"`
	Availability  *Availability `json:"availability"`
	IsPublic      *bool         `json:"isPublic"`
}

// Apply validates the request and copies the provided fields onto u.
// u is not modified when validation fails.
func (r *UpdateProfileRequest) Apply(u *User) error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if r.Availability != nil && !r.Availability.Valid() {
		return fmt.Errorf("%w: availability must be one of Weekends, Evenings, Weekdays", ErrValidation)
	}
	if r.ProfilePhoto != nil {
		photo := strings.TrimSpace(*r.ProfilePhoto)
		if photo != u.ProfilePhoto && !isWebURL(photo) {
			return fmt.Errorf("%w: profile photo must be an http(s) URL", ErrValidation)
		}
	}

	if r.Name != nil {
		u.Name = strings.TrimSpace(*r.Name)
	}
	if r.Location != nil {
		u.Location = strings.TrimSpace(*r.Location)
	}
	if r.ProfilePhoto != nil {
		u.ProfilePhoto = strings.TrimSpace(*r.ProfilePhoto)
	}
	if r.SkillsOffered != nil {
		u.SkillsOffered = NormalizeSkills(*r.SkillsOffered)
	}
	if r.SkillsWanted != nil {
		u.SkillsWanted = NormalizeSkills(*r.SkillsWanted)
	}
	if r.Availability != nil {
		u.Availability = *r.Availability
	}
	if r.IsPublic != nil {
		u.IsPublic = *r.IsPublic
	}
	return nil
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// UserSummary is the slice of a user embedded in swap listings.
type UserSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	ProfilePhoto string `json:"profilePhoto,omitempty"`
}
