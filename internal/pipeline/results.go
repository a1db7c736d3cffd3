package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/docufuse/docufuse/internal/fusion"
)

// ToJSON serializes a single unified result to pretty JSON.
func ToJSON(res fusion.UnifiedResult) (string, error) {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONBatch serializes multiple unified results to pretty JSON.
func ToJSONBatch(results []fusion.UnifiedResult) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToPlainText renders the authoritative text with a short provenance footer.
func ToPlainText(res fusion.UnifiedResult) string {
	var sb strings.Builder
	sb.WriteString(res.Text)
	if res.Text != "" {
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("\n[method=%s confidence=%.3f words=%d]\n",
		res.Method, res.OverallConfidence, res.WordCount))
	return sb.String()
}

// ToCSV exports per-word structured data as CSV with header. Results without
// word boxes yield a single summary row.
func ToCSV(res fusion.UnifiedResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"word", "x", "y", "w", "h", "method", "confidence"}); err != nil {
		return "", err
	}

	if len(res.WordBoxes) == 0 {
		row := []string{res.Text, "", "", "", "", res.Method, fmt.Sprintf("%.3f", res.OverallConfidence)}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	for _, wb := range res.WordBoxes {
		row := []string{
			wb.Word,
			strconv.Itoa(wb.Box.X),
			strconv.Itoa(wb.Box.Y),
			strconv.Itoa(wb.Box.W),
			strconv.Itoa(wb.Box.H),
			res.Method,
			fmt.Sprintf("%.3f", res.OverallConfidence),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Format renders a result in the named output format: "json", "text", or
// "csv".
func Format(res fusion.UnifiedResult, format string) (string, error) {
	switch format {
	case "json", "":
		return ToJSON(res)
	case "text":
		return ToPlainText(res), nil
	case "csv":
		return ToCSV(res)
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}
