package exam

// ScorePercent is the share of correct attempts over the exam's fixed question
// count, 0..100. Unanswered questions count as wrong.
func ScorePercent(attempts []Attempt, total int) (float64, error) {
	if total <= 0 {
		return 0, ErrNoQuestions
	}
	correct := 0
	for _, a := range attempts {
		if a.Correct {
			correct++
		}
	}
	return float64(correct) / float64(total) * 100, nil
}
