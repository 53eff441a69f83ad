package usecase

import (
	"sort"

	"github.com/modaics/fitsearch/internal/domain"
)

// fusedCandidate — кандидат выдачи после слияния модальностей.
type fusedCandidate struct {
	ItemID int64
	Score  float64
}

// fuseModalities сливает текстовую и визуальную выдачи во взвешенную сумму.
//
// Скоры текстовой и визуальной модальностей живут в несопоставимых диапазонах,
// поэтому каждый список сначала независимо приводится к [0,1] по min-max
// внутри своего набора кандидатов. Вещь, отсутствующая в одной из выдач,
// получает нулевой вклад этой модальности.
//
// Порядок детерминирован: скор по убыванию, при равенстве — ID по возрастанию.
func fuseModalities(text, image []domain.ScoredID, textWeight, imageWeight float64) []fusedCandidate {
	textNorm := normalizeMinMax(text)
	imageNorm := normalizeMinMax(image)

	fused := make(map[int64]float64, len(text)+len(image))
	for _, c := range text {
		fused[c.ItemID] = textWeight * textNorm[c.ItemID]
	}
	for _, c := range image {
		fused[c.ItemID] += imageWeight * imageNorm[c.ItemID]
	}

	return rankCandidates(fused)
}

// singleModality переводит выдачу одной модальности в кандидатов без
// нормализации: косинусные скоры одного энкодера сопоставимы между собой,
// а min-max на единственном списке лишь исказил бы абсолютные значения
// (в т.ч. для порога MinScore).
func singleModality(list []domain.ScoredID) []fusedCandidate {
	fused := make(map[int64]float64, len(list))
	for _, c := range list {
		fused[c.ItemID] = float64(c.Score)
	}

	return rankCandidates(fused)
}

// normalizeMinMax возвращает скоры списка, приведённые к [0,1] по min-max.
// Вырожденный список (все скоры равны) целиком отображается в единицу.
func normalizeMinMax(list []domain.ScoredID) map[int64]float64 {
	norm := make(map[int64]float64, len(list))
	if len(list) == 0 {
		return norm
	}

	minScore, maxScore := float64(list[0].Score), float64(list[0].Score)
	for _, c := range list[1:] {
		s := float64(c.Score)
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	spread := maxScore - minScore
	for _, c := range list {
		if spread == 0 {
			norm[c.ItemID] = 1
			continue
		}
		norm[c.ItemID] = (float64(c.Score) - minScore) / spread
	}

	return norm
}

// rankCandidates сортирует кандидатов: скор по убыванию, tie-break — ID по возрастанию,
// чтобы повторный идентичный запрос возвращал идентичный порядок.
func rankCandidates(fused map[int64]float64) []fusedCandidate {
	ranked := make([]fusedCandidate, 0, len(fused))
	for id, score := range fused {
		ranked = append(ranked, fusedCandidate{ItemID: id, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ItemID < ranked[j].ItemID
	})

	return ranked
}
