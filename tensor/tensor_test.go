package tensor

import "testing"

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	if len(t1.Data) != 6 {
		t.Fatalf("expected 6 elements, got %d", len(t1.Data))
	}
	if len(t1.Shape) != 2 || t1.Shape[0] != 2 || t1.Shape[1] != 3 {
		t.Fatalf("unexpected shape: %v", t1.Shape)
	}
}

func TestAdd(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{3}}
	b := &Tensor{Data: []float64{4, 5, 6}, Shape: []int{3}}
	c, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{5, 7, 9}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
	if _, err := Add(a, New(2, 2)); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
}

func TestMatMul(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3, 4}, Shape: []int{2, 2}}
	b := &Tensor{Data: []float64{5, 6, 7, 8}, Shape: []int{2, 2}}
	c, err := MatMul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{19, 22, 43, 50}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestMatMulNonSquare(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{3, 1}}
	b := &Tensor{Data: []float64{4, 5}, Shape: []int{1, 2}}
	c, err := MatMul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if c.Shape[0] != 3 || c.Shape[1] != 2 {
		t.Fatalf("unexpected shape %v", c.Shape)
	}
	if c.At(2, 1) != 15 {
		t.Errorf("At(2,1) = %f, want 15", c.At(2, 1))
	}
	if _, err := MatMul(b, b); err == nil {
		t.Fatalf("expected inner dimension error")
	}
}

func TestReshapeSharesData(t *testing.T) {
	a := New(2, 3)
	v, err := a.Reshape(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	v.Set(7, 2, 1)
	if a.Data[5] != 7 {
		t.Fatalf("reshape did not share storage")
	}
	if _, err := a.Reshape(4, 2); err == nil {
		t.Fatalf("expected reshape error")
	}
}

func TestCloneAndEqual(t *testing.T) {
	a, err := FromData([]float64{1, 2, 3, 4}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	b := a.Clone()
	if !Equal(a, b) {
		t.Fatalf("clone differs")
	}
	b.Data[0] = 9
	if Equal(a, b) || a.Data[0] != 1 {
		t.Fatalf("clone shares storage")
	}
	if _, err := FromData([]float64{1, 2, 3}, 2, 2); err == nil {
		t.Fatalf("expected size error")
	}
}
