package report

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/lexcodex/optima/formulation"
)

// MaxVectorDisplay is the longest parameter vector quoted in full.
const MaxVectorDisplay = 10

type paramSummary struct {
	Definition string          `json:"definition"`
	Type       string          `json:"type"`
	Shape      json.RawMessage `json:"shape"`
	Count      *int            `json:"count,omitempty"`
	Min        *float64        `json:"min,omitempty"`
	Max        *float64        `json:"max,omitempty"`
	Mean       *float64        `json:"mean,omitempty"`
	Sample     json.RawMessage `json:"sample (first 5),omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// SummarizeParams renders params.json for the prompt. Long numeric vectors
// are replaced by count, range, mean and a short sample.
func SummarizeParams(params []byte) (string, error) {
	doc := gjson.ParseBytes(params)
	if len(params) == 0 || !doc.IsObject() {
		return "{}", nil
	}
	out := formulation.OrderedMap[paramSummary]{}
	doc.ForEach(func(name, spec gjson.Result) bool {
		entry := paramSummary{
			Definition: spec.Get("definition").String(),
			Type:       "float",
			Shape:      json.RawMessage("[]"),
		}
		if t := spec.Get("type"); t.Exists() {
			entry.Type = t.String()
		}
		if sh := spec.Get("shape"); sh.Exists() {
			entry.Shape = json.RawMessage(sh.Raw)
		}
		value := spec.Get("value")
		items := value.Array()
		if value.IsArray() && len(items) > MaxVectorDisplay {
			summarizeVector(&entry, items)
		} else if value.Exists() {
			entry.Value = json.RawMessage(value.Raw)
		} else {
			entry.Value = json.RawMessage("null")
		}
		out.Set(name.String(), entry)
		return true
	})
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("summarize parameters: %w", err)
	}
	return string(data), nil
}

func summarizeVector(entry *paramSummary, items []gjson.Result) {
	var nums []float64
	for _, it := range items {
		if it.Type == gjson.Number {
			nums = append(nums, it.Float())
		}
	}
	if len(nums) == 0 {
		entry.Value = rawArray(items[:MaxVectorDisplay])
		entry.Note = fmt.Sprintf("Showing first %d of %d values", MaxVectorDisplay, len(items))
		return
	}
	lo, hi, sum := nums[0], nums[0], 0.0
	for _, n := range nums {
		lo, hi = math.Min(lo, n), math.Max(hi, n)
		sum += n
	}
	count := len(items)
	mean := math.Round(sum/float64(len(nums))*1e4) / 1e4
	entry.Count = &count
	entry.Min, entry.Max, entry.Mean = &lo, &hi, &mean
	entry.Sample = rawArray(items[:5])
	entry.Note = fmt.Sprintf("Vector of %d values (summarized)", count)
}

func rawArray(items []gjson.Result) json.RawMessage {
	buf := []byte{'['}
	for i, it := range items {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, it.Raw...)
	}
	return append(buf, ']')
}
