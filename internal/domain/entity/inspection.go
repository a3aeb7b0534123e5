package entity

// InferenceResult хранит итог работы модели для одного изображения.
type InferenceResult struct {
	ImagePath   string        // путь к исходному изображению
	ImageWidth  int           // ширина изображения
	ImageHeight int           // высота изображения
	Boxes       []BoundingBox // найденные трещины
}

// CrackCount возвращает число трещин на изображении (по одной на рамку).
func (r *InferenceResult) CrackCount() int {
	if r == nil {
		return 0
	}
	return len(r.Boxes)
}

// HasCracks сообщает, нашла ли модель хотя бы одну трещину.
func (r *InferenceResult) HasCracks() bool {
	return r.CrackCount() > 0
}
