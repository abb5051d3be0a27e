package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

// maxDiagnoses caps how many candidates a backend may return.
const maxDiagnoses = 5

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a plant pathologist. Look at the crop leaf photo and produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- diagnoses is an array of 1 to 5 candidates, most likely first.
- confidence is an integer from 0 to 100.
- Use lowercase severity values: low, medium, high.
- If the plant looks healthy, return a "Healthy Plant" candidate with severity low.
- remediation is an ordered list of short, practical steps for a farmer.

Schema (example with empty values):
{
  "diagnoses": [
    {
      "label": "<string>",
      "confidence": 0,
      "severity": "<low|medium|high>",
      "description": "<string>",
      "remediation": ["<string>"]
    }
  ]
}`
}

// GetUserPrompt builds a compact user message around the uploaded file.
func GetUserPrompt(fileName string) string {
	return fmt.Sprintf("Diagnose the crop leaf in the attached image and respond with the JSON per schema. File name: %s", fileName)
}

// Suggestion matches the schema used by the system prompt.
type Suggestion struct {
	Diagnoses []struct {
		Label       string   `json:"label"`
		Confidence  float64  `json:"confidence"`
		Severity    string   `json:"severity"`
		Description string   `json:"description"`
		Remediation []string `json:"remediation"`
	} `json:"diagnoses"`
}

// ParseDiagnoses decodes a model answer into diagnoses ordered by confidence,
// highest first. Entries without a label are dropped.
func ParseDiagnoses(raw string) ([]diagnosis.Diagnosis, error) {
	raw = StripCodeFences(raw)
	var s Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("bad JSON from model: %w", err)
	}

	out := make([]diagnosis.Diagnosis, 0, len(s.Diagnoses))
	for _, d := range s.Diagnoses {
		label := strings.TrimSpace(d.Label)
		if label == "" {
			continue
		}
		conf := d.Confidence
		// some models answer 0..1
		if conf > 0 && conf < 1 {
			conf *= 100
		}
		steps := make([]string, 0, len(d.Remediation))
		for _, r := range d.Remediation {
			if r = strings.TrimSpace(r); r != "" {
				steps = append(steps, r)
			}
		}
		out = append(out, diagnosis.Diagnosis{
			Label:       label,
			Confidence:  int(conf + 0.5),
			Severity:    diagnosis.ParseSeverity(d.Severity),
			Description: strings.TrimSpace(d.Description),
			Remediation: steps,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > maxDiagnoses {
		out = out[:maxDiagnoses]
	}
	return out, nil
}

// StripCodeFences removes a ```json ... ``` wrapper if the model added one anyway.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
