package risk

import (
	"context"

	"github.com/jwalitptl/risk-api/internal/model"
	"github.com/jwalitptl/risk-api/internal/service/strength"
)

const NoteBreachUnverified = "unable to verify against known breaches"

type BreachChecker interface {
	Check(ctx context.Context, password string) model.BreachResult
}

// Evaluator combines the local strength score with the remote breach check. An unverified
// breach answer never lowers the score; it only adds an informational note.
type Evaluator struct {
	scorer *strength.Scorer
	breach BreachChecker
}

func NewEvaluator(scorer *strength.Scorer, breach BreachChecker) *Evaluator {
	return &Evaluator{scorer: scorer, breach: breach}
}

func (e *Evaluator) Evaluate(ctx context.Context, password string) *model.PasswordEvaluation {
	evaluation := &model.PasswordEvaluation{}

	var notPwned *bool
	if password != "" && e.breach != nil {
		breach := e.breach.Check(ctx, password)
		evaluation.Breach = &breach
		if breach.Verified {
			clean := !breach.Breached
			notPwned = &clean
		} else {
			evaluation.Notes = append(evaluation.Notes, NoteBreachUnverified)
		}
	}

	evaluation.Strength, evaluation.Requirements = e.scorer.EvaluateWithBreach(password, notPwned)
	return evaluation
}
