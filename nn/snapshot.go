package nn

import (
	"sort"

	"lora_lib/tensor"
)

// WeightData is a detached copy of one named parameter value.
type WeightData struct {
	Name  string
	Shape []int
	Data  []float64
}

// Snapshot maps parameter names to detached copies of their values.
type Snapshot map[string]*WeightData

// TensorToWeightData copies a tensor into a named WeightData.
func TensorToWeightData(name string, t *tensor.Tensor) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float64(nil), t.Data...),
	}
}

// WeightDataToTensor converts weight data back to a tensor
func WeightDataToTensor(wd *WeightData) *tensor.Tensor {
	t := tensor.New(wd.Shape...)
	copy(t.Data, wd.Data)
	return t
}

// TakeSnapshot clones every parameter value.
func TakeSnapshot(params []*Parameter) Snapshot {
	s := make(Snapshot, len(params))
	for _, p := range params {
		s[p.Name] = TensorToWeightData(p.Name, p.Value)
	}
	return s
}

// Changed returns, sorted, the names of params present in the snapshot whose
// current value differs from the recorded one in any element.
func (s Snapshot) Changed(params []*Parameter) []string {
	var changed []string
	for _, p := range params {
		wd, ok := s[p.Name]
		if !ok {
			continue
		}
		if !tensor.Equal(WeightDataToTensor(wd), p.Value) {
			changed = append(changed, p.Name)
		}
	}
	sort.Strings(changed)
	return changed
}
