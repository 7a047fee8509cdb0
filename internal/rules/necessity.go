package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"esgtrack/internal/domain"
)

// IsTaskNeeded decides whether an answered question yields a task.
// Compliant "yes" answers only produce a task when the question is
// required or governed by a mandatory framework.
func IsTaskNeeded(q domain.Question, answer any) bool {
	switch q.Type {
	case domain.QuestionYesNo:
		switch AnswerString(answer) {
		case "no", "partial":
			return true
		case "yes":
			return q.Required || HasMandatorySignal(q.Frameworks)
		}
		return false
	case domain.QuestionNumber:
		n, ok := AnswerNumber(answer)
		return !ok || n == 0
	case domain.QuestionText:
		return strings.TrimSpace(AnswerString(answer)) != ""
	}
	return false
}

// AnswerString renders a raw answer for keyword dispatch. yes_no values are
// lower-cased; booleans map to yes/no.
func AnswerString(answer any) string {
	switch v := answer.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case bool:
		if v {
			return "yes"
		}
		return "no"
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(answer)))
}

// AnswerNumber parses a numeric answer.
func AnswerNumber(answer any) (float64, bool) {
	switch v := answer.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
