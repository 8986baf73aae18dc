package recommend

// Tariff — один из предложенных тарифов.
type Tariff struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Features    []string `json:"features"`
}

// Proposal — результат подбора: упорядоченный список тарифов,
// имя рекомендованного и объяснение выбора.
type Proposal struct {
	Tariffs        []Tariff `json:"tariffs"`
	Recommendation string   `json:"recommendation"`
	Explanation    string   `json:"explanation"`
}

// AnswerPair — пара «вопрос/ответ» онбординга в исходном порядке.
type AnswerPair struct {
	Question string
	Answer   string
}
