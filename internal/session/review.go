package session

// ReviewRow is one reconciled line of the post-submission review
// panel: the server's verdict joined with the locally held question
// text and option wording.
type ReviewRow struct {
	QuestionID     int64
	QuestionText   string
	SelectedOption string
	SelectedText   string
	CorrectOption  string
	CorrectText    string
	IsCorrect      bool
	Explanation    string
}

// BuildReview resolves the option keys of each review item to display
// text through the catalog. Items referencing a question the catalog
// does not hold keep their raw keys; skewed server data degrades the
// display but never breaks it.
func BuildReview(catalog *Catalog, items []ReviewItem) []ReviewRow {
	rows := make([]ReviewRow, 0, len(items))
	for _, item := range items {
		row := ReviewRow{
			QuestionID:     item.QuestionID,
			QuestionText:   item.QuestionText,
			SelectedOption: item.SelectedOption,
			SelectedText:   item.SelectedOption,
			CorrectOption:  item.CorrectOption,
			CorrectText:    item.CorrectOption,
			IsCorrect:      item.IsCorrect,
			Explanation:    item.Explanation,
		}
		if q, ok := catalog.ByID(item.QuestionID); ok {
			if row.QuestionText == "" {
				row.QuestionText = q.Text
			}
			if item.SelectedOption != "" {
				row.SelectedText = q.OptionText(item.SelectedOption)
			}
			if item.CorrectOption != "" {
				row.CorrectText = q.OptionText(item.CorrectOption)
			}
		}
		rows = append(rows, row)
	}
	return rows
}
