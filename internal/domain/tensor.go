package domain

// Tensor — плотный float32 тензор модели в порядке row-major.
type Tensor struct {
	Shape []int64
	Data  []float32
}

func NewTensor(shape []int64, data []float32) *Tensor {
	return &Tensor{
		Shape: shape,
		Data:  data,
	}
}

// Elements возвращает число элементов по форме.
func (t *Tensor) Elements() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}
