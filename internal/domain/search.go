package domain

// SearchFilter — metadata-фильтры векторного поиска.
// Фильтрация выполняется хранилищем до усечения результата (pre-filter),
// чтобы k отфильтрованных кандидатов возвращались без over-fetch.
type SearchFilter struct {
	Platform      *Platform
	PriceCentsMin *int64
	PriceCentsMax *int64
}

// ScoredID — результат векторного поиска до гидрации метаданными.
// Score — косинусное сходство, выше — лучше.
type ScoredID struct {
	ItemID int64
	Score  float32
}

// SearchHit — позиция итоговой выдачи.
type SearchHit struct {
	Item  *Item
	Score float64
	Rank  int // позиция в выдаче, нумерация с единицы
}

func NewSearchHit(item *Item, score float64, rank int) SearchHit {
	return SearchHit{
		Item:  item,
		Score: score,
		Rank:  rank,
	}
}
