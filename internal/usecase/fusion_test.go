package usecase

import (
	"testing"

	"github.com/modaics/fitsearch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(pairs ...interface{}) []domain.ScoredID {
	list := make([]domain.ScoredID, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		list = append(list, domain.ScoredID{
			ItemID: int64(pairs[i].(int)),
			Score:  float32(pairs[i+1].(float64)),
		})
	}
	return list
}

func ids(ranked []fusedCandidate) []int64 {
	out := make([]int64, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, c.ItemID)
	}
	return out
}

func TestFuseModalities_WeightedSum(t *testing.T) {
	// Вещь 1 лучшая в тексте, вещь 3 лучшая в изображении,
	// вещь 2 середина обеих выдач. Скоры — точные float32
	// (степени двойки), чтобы tie был точным, а не в пределах epsilon.
	text := scored(1, 1.0, 2, 0.75, 3, 0.5)
	image := scored(3, 1.0, 2, 0.75, 1, 0.5)

	ranked := fuseModalities(text, image, 0.5, 0.5)

	require.Len(t, ranked, 3)
	// После min-max: text 1→1.0, 2→0.5, 3→0.0; image 3→1.0, 2→0.5, 1→0.0.
	// Сумма с весами 0.5/0.5: 1→0.5, 2→0.5, 3→0.5 — полный tie, порядок по ID.
	assert.Equal(t, []int64{1, 2, 3}, ids(ranked))
	for _, c := range ranked {
		assert.InDelta(t, 0.5, c.Score, 1e-9)
	}
}

func TestFuseModalities_MissingModalityContributesZero(t *testing.T) {
	text := scored(1, 0.9, 2, 0.5)
	image := scored(2, 0.8, 3, 0.4)

	ranked := fuseModalities(text, image, 0.5, 0.5)

	require.Len(t, ranked, 3)
	// После min-max: text 1→1.0, 2→0.0; image 2→1.0, 3→0.0.
	// Итог: 1→0.5, 2→0.5, 3→0.0; вещь 3 без текстового вклада замыкает выдачу.
	assert.Equal(t, []int64{1, 2, 3}, ids(ranked))
	assert.InDelta(t, 0.0, ranked[2].Score, 1e-9)
}

func TestFuseModalities_WeightShiftReorders(t *testing.T) {
	text := scored(1, 0.9, 2, 0.1)
	image := scored(2, 0.9, 1, 0.1)

	textBiased := fuseModalities(text, image, 0.9, 0.1)
	imageBiased := fuseModalities(text, image, 0.1, 0.9)

	assert.Equal(t, int64(1), textBiased[0].ItemID)
	assert.Equal(t, int64(2), imageBiased[0].ItemID)
}

func TestFuseModalities_MonotonicInRawScore(t *testing.T) {
	// Рост сырого скора не понижает позицию при прочих равных.
	base := fuseModalities(scored(1, 0.5, 2, 0.6, 3, 0.9), scored(1, 0.5, 2, 0.5, 3, 0.5), 0.5, 0.5)
	boosted := fuseModalities(scored(1, 0.8, 2, 0.6, 3, 0.9), scored(1, 0.5, 2, 0.5, 3, 0.5), 0.5, 0.5)

	posBase := indexOf(base, 1)
	posBoosted := indexOf(boosted, 1)
	assert.LessOrEqual(t, posBoosted, posBase)
}

func indexOf(ranked []fusedCandidate, id int64) int {
	for i, c := range ranked {
		if c.ItemID == id {
			return i
		}
	}
	return -1
}

func TestFuseModalities_Deterministic(t *testing.T) {
	text := scored(5, 0.7, 1, 0.7, 9, 0.7)
	image := scored(9, 0.3, 5, 0.3)

	first := fuseModalities(text, image, 0.5, 0.5)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, fuseModalities(text, image, 0.5, 0.5))
	}
}

func TestSingleModality_PreservesRawScores(t *testing.T) {
	ranked := singleModality(scored(1, 0.9, 2, 0.4))

	require.Len(t, ranked, 2)
	assert.Equal(t, int64(1), ranked[0].ItemID)
	assert.InDelta(t, 0.9, ranked[0].Score, 1e-6)
	assert.InDelta(t, 0.4, ranked[1].Score, 1e-6)
}

func TestNormalizeMinMax_DegenerateList(t *testing.T) {
	norm := normalizeMinMax(scored(1, 0.42, 2, 0.42))

	assert.Equal(t, 1.0, norm[1])
	assert.Equal(t, 1.0, norm[2])
}

func TestNormalizeMinMax_Empty(t *testing.T) {
	assert.Empty(t, normalizeMinMax(nil))
}

func TestRankCandidates_TieBreakByID(t *testing.T) {
	ranked := rankCandidates(map[int64]float64{7: 0.5, 3: 0.5, 5: 0.9})

	assert.Equal(t, []int64{5, 3, 7}, ids(ranked))
}
