package classifier

import (
	"encoding/json"
	"math"
	"testing"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore(t *testing.T) {
	yTrue := []int{1, 0, 1, 1, 0, 0}
	yPred := []int{1, 0, 0, 1, 1, 0}
	proba := []float64{0.9, 0.2, 0.4, 0.7, 0.6, 0.1}

	m := Score(yTrue, yPred, proba)
	if !near(m.Accuracy, 4.0/6) {
		t.Errorf("accuracy: %v", m.Accuracy)
	}
	if !near(m.Precision, 2.0/3) || !near(m.Recall, 2.0/3) || !near(m.F1, 2.0/3) {
		t.Errorf("unexpected precision/recall/f1: %+v", m)
	}
	// one inversion (0.4 positive below 0.6 negative) of nine pairs
	if m.ROCAUC == nil || !near(*m.ROCAUC, 8.0/9) {
		t.Errorf("unexpected auc %v", m.ROCAUC)
	}
}

func TestScoreZeroDivision(t *testing.T) {
	m := Score([]int{0, 0, 1}, []int{0, 0, 0}, []float64{0.1, 0.2, 0.3})
	if m.Precision != 0 || m.F1 != 0 || m.Recall != 0 {
		t.Errorf("expected zero precision/recall/f1, got %+v", m)
	}
	if empty := Score(nil, nil, nil); empty.Accuracy != 0 || empty.ROCAUC != nil {
		t.Errorf("unexpected empty score %+v", empty)
	}
}

func TestROCAUC(t *testing.T) {
	tests := []struct {
		name   string
		y      []int
		scores []float64
		want   *float64
	}{
		{"perfect", []int{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}, ptr(1)},
		{"partial", []int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, ptr(0.75)},
		{"all tied", []int{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5}, ptr(0.5)},
		{"single class", []int{1, 1}, []float64{0.2, 0.9}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ROCAUC(tt.y, tt.scores)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if got != nil && !near(*got, *tt.want) {
				t.Errorf("expected %v, got %v", *tt.want, *got)
			}
		})
	}
}

func TestReport(t *testing.T) {
	yTrue := []int{1, 0, 1, 1, 0, 0, 0}
	yPred := []int{1, 0, 0, 1, 1, 0, 0}

	r := NewReport(yTrue, yPred)
	if r.ConfusionMatrix != [2][2]int{{3, 1}, {1, 2}} {
		t.Errorf("unexpected confusion matrix %v", r.ConfusionMatrix)
	}
	if r.Classes[0].Support != 4 || r.Classes[1].Support != 3 {
		t.Errorf("unexpected supports %+v", r.Classes)
	}
	if !near(r.Classes[0].Precision, 0.75) || !near(r.Classes[1].Recall, 2.0/3) {
		t.Errorf("unexpected class scores %+v", r.Classes)
	}
	if !near(r.Accuracy, 5.0/7) {
		t.Errorf("accuracy %v", r.Accuracy)
	}
	wantMacro := (r.Classes[0].F1 + r.Classes[1].F1) / 2
	if !near(r.MacroAvg.F1, wantMacro) || r.MacroAvg.Support != 7 {
		t.Errorf("unexpected macro avg %+v", r.MacroAvg)
	}
	wantWeighted := (r.Classes[0].F1*4 + r.Classes[1].F1*3) / 7
	if !near(r.WeightedAvg.F1, wantWeighted) {
		t.Errorf("unexpected weighted avg %+v", r.WeightedAvg)
	}
}

func TestReportJSON(t *testing.T) {
	r := NewReport([]int{0, 1, 1}, []int{0, 1, 0})
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}

	var raw struct {
		ClassificationReport map[string]json.RawMessage `json:"classification_report"`
		ConfusionMatrix      [][]int                    `json:"confusion_matrix"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unexpected layout %s: %v", data, err)
	}
	if len(raw.ConfusionMatrix) != 2 {
		t.Errorf("expected 2x2 confusion matrix, got %v", raw.ConfusionMatrix)
	}
	for _, key := range []string{"0", "1", "accuracy", "macro avg", "weighted avg"} {
		if _, ok := raw.ClassificationReport[key]; !ok {
			t.Errorf("missing report key %q", key)
		}
	}

	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != r {
		t.Errorf("report changed after decoding: %+v vs %+v", back, r)
	}
}

func ptr(v float64) *float64 {
	return &v
}
