package classifier

import "errors"

var (
	errEmptyScores = errors.New("backend returned no scores")
	errBadScore    = errors.New("backend returned a non-finite score")
)
