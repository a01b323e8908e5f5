package traits

import (
	"testing"

	"github.com/ashureev/voice-coach/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogShape(t *testing.T) {
	c := Default()

	require.Len(t, c.Categories, 4)
	for _, cat := range c.Categories {
		assert.Len(t, cat.Traits, 4, "category %s", cat.Name)
	}
	assert.Len(t, c.IDs(), 16)
	assert.True(t, c.Known("question-led"))
	assert.False(t, c.Known("sarcastic"))

	tr, ok := c.Lookup("calm")
	require.True(t, ok)
	assert.Equal(t, "Tone & Emotional Style", tr.Category)
	assert.Equal(t, domain.PaceSlow, tr.Pacing)
}

func TestResolveEmpatheticAnalytical(t *testing.T) {
	p := Resolve([]string{"empathetic", "analytical"})

	assert.Equal(t, "warm and understanding", p.Tone)
	// empathetic is matched first and declares no structure.
	assert.Equal(t, domain.LevelMedium, p.StructureLevel)
	assert.True(t, p.FrameworkUsage)
	assert.Equal(t, domain.PaceMedium, p.Pacing)
	// (0.6 + 0.5 default) / 2
	assert.InDelta(t, 0.55, p.QuestionRatio, 1e-9)
}

func TestResolveToneIsFirstDeclared(t *testing.T) {
	calmFirst := Resolve([]string{"calm", "empathetic"})
	empatheticFirst := Resolve([]string{"empathetic", "calm"})

	assert.Equal(t, "serene and measured", calmFirst.Tone)
	assert.Equal(t, "warm and understanding", empatheticFirst.Tone)

	// A later trait declaring no tone does not reset it.
	assert.Equal(t, "serene and measured", Resolve([]string{"calm", "analytical"}).Tone)
	assert.Equal(t, "serene and measured", Resolve([]string{"analytical", "calm"}).Tone)
}

func TestResolveStructureAndPacingFixedByFirstMatch(t *testing.T) {
	tests := []struct {
		name      string
		selected  []string
		structure string
		pacing    string
	}{
		{name: "first declares both", selected: []string{"tactical", "big-picture"}, structure: domain.LevelHigh, pacing: domain.PaceFast},
		{name: "first declares neither", selected: []string{"empathetic", "analytical"}, structure: domain.LevelMedium, pacing: domain.PaceMedium},
		{name: "later pacing ignored", selected: []string{"empathetic", "calm"}, structure: domain.LevelMedium, pacing: domain.PaceMedium},
		{name: "first declares pacing only", selected: []string{"calm", "structured"}, structure: domain.LevelMedium, pacing: domain.PaceSlow},
		{name: "unknown first is skipped", selected: []string{"sarcastic", "big-picture", "tactical"}, structure: domain.LevelLow, pacing: domain.PaceSlow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Resolve(tt.selected)
			assert.Equal(t, tt.structure, p.StructureLevel)
			assert.Equal(t, tt.pacing, p.Pacing)
		})
	}
}

func TestResolveUnknownTraits(t *testing.T) {
	assert.Equal(t, domain.DefaultTraitProfile(), Resolve([]string{"sarcastic", "loud"}))
	assert.Equal(t, domain.DefaultTraitProfile(), Resolve(nil))

	// Unknown ids are skipped but still count toward the ratio divisor.
	p := Resolve([]string{"question-led", "sarcastic"})
	assert.InDelta(t, 0.45, p.QuestionRatio, 1e-9)
	assert.Equal(t, "supportive and professional", p.Tone)
}

func TestResolveAllSubsetsStayInRange(t *testing.T) {
	ids := Default().IDs()
	check := func(sel []string) {
		p := Resolve(sel)
		if p.QuestionRatio < 0 || p.QuestionRatio > 1 {
			t.Fatalf("%v: ratio %v out of range", sel, p.QuestionRatio)
		}
		if p.Tone == "" || p.StructureLevel == "" || p.Pacing == "" {
			t.Fatalf("%v: undefined field in %+v", sel, p)
		}
	}

	for i := range ids {
		check([]string{ids[i]})
		for j := range ids {
			if j == i {
				continue
			}
			check([]string{ids[i], ids[j]})
			for k := range ids {
				if k == i || k == j {
					continue
				}
				check([]string{ids[i], ids[j], ids[k]})
			}
		}
	}
}

func TestParseCatalogRejectsBadInput(t *testing.T) {
	_, err := ParseCatalog([]byte("categories:\n  - name: x\n    traits:\n      - id: a\n      - id: a\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = ParseCatalog([]byte("categories:\n  - name: x\n    traits:\n      - id: a\n        question_ratio: 1.5\n"))
	assert.ErrorContains(t, err, "outside")

	_, err = ParseCatalog([]byte("categories: [::"))
	assert.Error(t, err)
}
