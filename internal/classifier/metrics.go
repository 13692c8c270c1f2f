package classifier

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Metrics are binary classification scores for the positive class
type Metrics struct {
	Accuracy  float64  `json:"accuracy"`
	Precision float64  `json:"precision"`
	Recall    float64  `json:"recall"`
	F1        float64  `json:"f1"`
	ROCAUC    *float64 `json:"roc_auc"` // nil when only one class is present
}

// EpochMetrics are the validation metrics after one training pass
type EpochMetrics struct {
	Metrics
	Epoch int `json:"epoch"`
}

// Score computes metrics from labels, predictions and positive probabilities.
// Undefined ratios are 0.
func Score(yTrue, yPred []int, proba []float64) Metrics {
	if len(yTrue) == 0 {
		return Metrics{}
	}
	cm := confusion(yTrue, yPred)
	tn, fp, fn, tp := cm[0][0], cm[0][1], cm[1][0], cm[1][1]

	precision := ratio(tp, tp+fp)
	recall := ratio(tp, tp+fn)
	return Metrics{
		Accuracy:  ratio(tp+tn, len(yTrue)),
		Precision: precision,
		Recall:    recall,
		F1:        f1(precision, recall),
		ROCAUC:    ROCAUC(yTrue, proba),
	}
}

// ROCAUC is the area under the ROC curve computed from score ranks, with
// ties sharing their average rank. It is nil unless both classes are present.
func ROCAUC(yTrue []int, scores []float64) *float64 {
	var pos, neg int
	for _, y := range yTrue {
		if y == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 || len(scores) != len(yTrue) {
		return nil
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	var posRankSum float64
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		rank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue[idx[k]] == 1 {
				posRankSum += rank
			}
		}
		i = j + 1
	}

	auc := (posRankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg))
	return &auc
}

// ClassScores are the report entries of one class or average
type ClassScores struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Report is a per-class breakdown of predictions over labels [0, 1]
type Report struct {
	Classes         [2]ClassScores
	Accuracy        float64
	MacroAvg        ClassScores
	WeightedAvg     ClassScores
	ConfusionMatrix [2][2]int // rows are true labels, columns predictions
}

// NewReport builds the classification report of yPred against yTrue
func NewReport(yTrue, yPred []int) Report {
	cm := confusion(yTrue, yPred)
	total := len(yTrue)

	var r Report
	r.ConfusionMatrix = cm
	for c := 0; c < 2; c++ {
		tp := cm[c][c]
		predicted := cm[0][c] + cm[1][c]
		support := cm[c][0] + cm[c][1]
		p, rec := ratio(tp, predicted), ratio(tp, support)
		r.Classes[c] = ClassScores{Precision: p, Recall: rec, F1: f1(p, rec), Support: support}
	}
	r.Accuracy = ratio(cm[0][0]+cm[1][1], total)

	for _, cs := range r.Classes {
		r.MacroAvg.Precision += cs.Precision / 2
		r.MacroAvg.Recall += cs.Recall / 2
		r.MacroAvg.F1 += cs.F1 / 2
		if total > 0 {
			w := float64(cs.Support) / float64(total)
			r.WeightedAvg.Precision += cs.Precision * w
			r.WeightedAvg.Recall += cs.Recall * w
			r.WeightedAvg.F1 += cs.F1 * w
		}
	}
	r.MacroAvg.Support = total
	r.WeightedAvg.Support = total
	return r
}

// MarshalJSON renders the report keyed by class label, then the averages
func (r Report) MarshalJSON() ([]byte, error) {
	cr := map[string]interface{}{
		"accuracy":     r.Accuracy,
		"macro avg":    r.MacroAvg,
		"weighted avg": r.WeightedAvg,
	}
	for c, cs := range r.Classes {
		cr[strconv.Itoa(c)] = cs
	}
	return json.Marshal(struct {
		ClassificationReport map[string]interface{} `json:"classification_report"`
		ConfusionMatrix      [2][2]int              `json:"confusion_matrix"`
	}{cr, r.ConfusionMatrix})
}

// UnmarshalJSON reads the layout written by MarshalJSON
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw struct {
		ClassificationReport map[string]json.RawMessage `json:"classification_report"`
		ConfusionMatrix      [2][2]int                  `json:"confusion_matrix"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ConfusionMatrix = raw.ConfusionMatrix
	for key, msg := range raw.ClassificationReport {
		var err error
		switch key {
		case "0":
			err = json.Unmarshal(msg, &r.Classes[0])
		case "1":
			err = json.Unmarshal(msg, &r.Classes[1])
		case "accuracy":
			err = json.Unmarshal(msg, &r.Accuracy)
		case "macro avg":
			err = json.Unmarshal(msg, &r.MacroAvg)
		case "weighted avg":
			err = json.Unmarshal(msg, &r.WeightedAvg)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// confusion counts labels outside {0,1} as 0
func confusion(yTrue, yPred []int) [2][2]int {
	var cm [2][2]int
	for i := range yTrue {
		t, p := 0, 0
		if yTrue[i] == 1 {
			t = 1
		}
		if i < len(yPred) && yPred[i] == 1 {
			p = 1
		}
		cm[t][p]++
	}
	return cm
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
