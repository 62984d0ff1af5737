package model

// StrengthLevel is the user-facing band of a password score.
type StrengthLevel string

const (
	StrengthVeryWeak StrengthLevel = "very-weak"
	StrengthWeak     StrengthLevel = "weak"
	StrengthFair     StrengthLevel = "fair"
	StrengthGood     StrengthLevel = "good"
	StrengthStrong   StrengthLevel = "strong"
)

// PasswordRequirements is the per-rule checklist shown next to a password field.
// NotPwned stays nil until a breach check has produced a verified answer.
type PasswordRequirements struct {
	MinLength      bool  `json:"min_length"`
	HasUpperCase   bool  `json:"has_upper_case"`
	HasLowerCase   bool  `json:"has_lower_case"`
	HasNumber      bool  `json:"has_number"`
	HasSpecialChar bool  `json:"has_special_char"`
	NotCommon      bool  `json:"not_common"`
	NotPwned       *bool `json:"not_pwned,omitempty"`
}

// PasswordStrengthResult carries the raw score (after bonuses and penalties, before clamping).
type PasswordStrengthResult struct {
	Score      int           `json:"score"`
	Level      StrengthLevel `json:"level"`
	Percentage int           `json:"percentage"`
	Feedback   []string      `json:"feedback"`
}

type PasswordEvaluation struct {
	Strength     *PasswordStrengthResult `json:"strength"`
	Requirements *PasswordRequirements   `json:"requirements"`
	Breach       *BreachResult           `json:"breach,omitempty"`
	Notes        []string                `json:"notes,omitempty"`
}
