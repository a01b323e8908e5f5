package traits

import "github.com/ashureev/voice-coach/internal/domain"

const defaultQuestionRatio = 0.5

// Resolve folds the selected traits into one profile using the default catalog.
func Resolve(selected []string) domain.TraitProfile {
	return defaultCatalog.Resolve(selected)
}

// Resolve folds the selected traits into one profile.
//
// Tone takes the first declared value in selection order, so ["calm",
// "empathetic"] sounds calm. Structure level and pacing are fixed by the first
// matched trait, falling back to medium when it declares none: ["empathetic",
// "analytical"] stays at medium structure. Framework usage is allowed if
// any trait allows it. The question ratio is the sum of each matched trait's
// ratio (0.5 when undeclared) divided by the number of selected ids. Unknown ids
// are skipped; if nothing matches the default profile is returned.
func (c *Catalog) Resolve(selected []string) domain.TraitProfile {
	var (
		tone, structure, pacing string
		frameworks              bool
		ratioSum                float64
		matched                 int
	)

	for _, id := range selected {
		t, ok := c.byID[id]
		if !ok {
			continue
		}
		matched++
		if tone == "" {
			tone = t.Tone
		}
		if matched == 1 {
			structure = orDefault(t.StructureLevel, domain.LevelMedium)
			pacing = orDefault(t.Pacing, domain.PaceMedium)
		}
		frameworks = frameworks || t.FrameworkUsage
		if t.QuestionRatio != nil {
			ratioSum += *t.QuestionRatio
		} else {
			ratioSum += defaultQuestionRatio
		}
	}

	p := domain.DefaultTraitProfile()
	if matched == 0 {
		return p
	}
	if tone != "" {
		p.Tone = tone
	}
	if structure != "" {
		p.StructureLevel = structure
	}
	if pacing != "" {
		p.Pacing = pacing
	}
	p.FrameworkUsage = frameworks
	p.QuestionRatio = clampRatio(ratioSum / float64(len(selected)))
	return p
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func clampRatio(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}
