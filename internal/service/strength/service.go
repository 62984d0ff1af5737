package strength

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jwalitptl/risk-api/internal/model"
)

const (
	maxBandScore = 5

	FeedbackLength   = "Use at least 8 characters"
	FeedbackUpper    = "Add an uppercase letter"
	FeedbackLower    = "Add a lowercase letter"
	FeedbackNumber   = "Add a number"
	FeedbackSpecial  = "Add a special character"
	FeedbackCommon   = "Avoid common or predictable passwords"
	FeedbackBreached = "This password has appeared in a known data breach"
)

var (
	upperRe  = regexp.MustCompile(`[A-Z]`)
	lowerRe  = regexp.MustCompile(`[a-z]`)
	numberRe = regexp.MustCompile(`[0-9]`)
)

// Observer is notified of every non-empty evaluation; metrics hang off it.
type Observer func(level model.StrengthLevel)

// Scorer rates passwords against a composition policy. It performs no I/O.
type Scorer struct {
	policy   model.PasswordPolicy
	blocked  []string
	observer Observer
}

func NewScorer(policy model.PasswordPolicy, observer Observer) *Scorer {
	blocked := make([]string, 0, len(policy.BlockedPasswords))
	for _, p := range policy.BlockedPasswords {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			blocked = append(blocked, p)
		}
	}
	return &Scorer{policy: policy, blocked: blocked, observer: observer}
}

// Evaluate scores password with the breach status unknown.
func (s *Scorer) Evaluate(password string) (*model.PasswordStrengthResult, *model.PasswordRequirements) {
	return s.EvaluateWithBreach(password, nil)
}

// EvaluateWithBreach scores password; notPwned carries a verified breach answer when one exists.
func (s *Scorer) EvaluateWithBreach(password string, notPwned *bool) (*model.PasswordStrengthResult, *model.PasswordRequirements) {
	if password == "" {
		return &model.PasswordStrengthResult{
			Score:      0,
			Level:      model.StrengthVeryWeak,
			Percentage: 0,
			Feedback:   []string{},
		}, &model.PasswordRequirements{}
	}

	length := utf8.RuneCountInString(password)
	req := &model.PasswordRequirements{
		MinLength:      length >= s.policy.MinLength,
		HasUpperCase:   upperRe.MatchString(password),
		HasLowerCase:   lowerRe.MatchString(password),
		HasNumber:      numberRe.MatchString(password),
		HasSpecialChar: strings.ContainsAny(password, s.policy.SpecialChars),
		NotCommon:      !s.isCommon(password),
		NotPwned:       notPwned,
	}

	score := 0
	feedback := make([]string, 0, 7)
	for _, rule := range []struct {
		met bool
		msg string
	}{
		{req.MinLength, FeedbackLength},
		{req.HasUpperCase, FeedbackUpper},
		{req.HasLowerCase, FeedbackLower},
		{req.HasNumber, FeedbackNumber},
		{req.HasSpecialChar, FeedbackSpecial},
	} {
		if rule.met {
			score++
		} else {
			feedback = append(feedback, rule.msg)
		}
	}

	if s.policy.BonusLength > 0 && length >= s.policy.BonusLength {
		score++
	}
	if s.policy.ExtraBonusLength > 0 && length >= s.policy.ExtraBonusLength {
		score++
	}

	if !req.NotCommon {
		score = floorZero(score - s.policy.CommonPenalty)
		feedback = append(feedback, FeedbackCommon)
	}
	if notPwned != nil && !*notPwned {
		score = floorZero(score - s.policy.BreachPenalty)
		feedback = append(feedback, FeedbackBreached)
	}

	level, pct := band(score)
	if s.observer != nil {
		s.observer(level)
	}

	return &model.PasswordStrengthResult{
		Score:      score,
		Level:      level,
		Percentage: pct,
		Feedback:   feedback,
	}, req
}

func (s *Scorer) isCommon(password string) bool {
	lower := strings.ToLower(password)
	for _, p := range s.blocked {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// band maps a raw score onto a level. Scores above the top band earn the strong tier;
// everything else is clamped to [0,5] first.
func band(raw int) (model.StrengthLevel, int) {
	if raw > maxBandScore {
		return model.StrengthStrong, 100
	}
	switch clamp(raw) {
	case 5:
		return model.StrengthGood, 80
	case 4:
		return model.StrengthFair, 60
	case 3:
		return model.StrengthWeak, 40
	default:
		return model.StrengthVeryWeak, 20
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxBandScore {
		return maxBandScore
	}
	return score
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
