package model

// PasswordPolicy holds the composition rules the strength scorer applies.
type PasswordPolicy struct {
	MinLength        int      `json:"min_length"`
	BonusLength      int      `json:"bonus_length"`
	ExtraBonusLength int      `json:"extra_bonus_length"`
	SpecialChars     string   `json:"special_chars"`
	CommonPenalty    int      `json:"common_penalty"`
	BreachPenalty    int      `json:"breach_penalty"`
	BlockedPasswords []string `json:"blocked_passwords"` // matched as case-insensitive substrings
}

// DefaultPasswordPolicy is the policy the portal's sign-up and reset forms use.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        8,
		BonusLength:      12,
		ExtraBonusLength: 16,
		SpecialChars:     `!@#$%^&*(),.?":{}|<>`,
		CommonPenalty:    2,
		BreachPenalty:    2,
		BlockedPasswords: []string{
			"123456", "password", "12345678", "qwerty", "123456789",
			"12345", "1234", "111111", "1234567", "dragon",
			"123123", "baseball", "abc123", "football", "monkey",
			"letmein", "696969",
		},
	}
}
