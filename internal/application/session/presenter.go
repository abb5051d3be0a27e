package session

import "github.com/bryanwahyu/agroscan/internal/domain/diagnosis"

// ResultState tells a client which placeholder, if any, to render.
type ResultState string

const (
	ResultLoading ResultState = "loading"
	ResultEmpty   ResultState = "empty"
	ResultReady   ResultState = "ready"
)

// RankedDiagnosis is a secondary candidate with its position in the ranking.
type RankedDiagnosis struct {
	Rank int `json:"rank"`
	diagnosis.Diagnosis
}

// ResultView is what a results page renders.
type ResultView struct {
	State       ResultState          `json:"state"`
	ImageRef    diagnosis.ImageRef   `json:"image_ref,omitempty"`
	Primary     *diagnosis.Diagnosis `json:"primary,omitempty"`
	Alternative []RankedDiagnosis    `json:"alternatives,omitempty"`
}

// PresentResults is a pure function of its inputs. While analyzing, the other
// inputs are ignored. No diagnoses means nothing to show, not an error.
func PresentResults(diagnoses []diagnosis.Diagnosis, image diagnosis.ImageRef, analyzing bool) ResultView {
	if analyzing {
		return ResultView{State: ResultLoading}
	}
	if len(diagnoses) == 0 {
		return ResultView{State: ResultEmpty}
	}
	primary := diagnoses[0].Clone()
	view := ResultView{State: ResultReady, ImageRef: image, Primary: &primary}
	for i, d := range diagnoses[1:] {
		view.Alternative = append(view.Alternative, RankedDiagnosis{Rank: i + 2, Diagnosis: d.Clone()})
	}
	return view
}
