package entity

// BoundingBox представляет область изображения, где модель нашла трещину
type BoundingBox struct {
	X          int     // координата X левого верхнего угла
	Y          int     // координата Y левого верхнего угла
	Width      int     // ширина области в пикселях
	Height     int     // высота области в пикселях
	Confidence float64 // уверенность модели (0..1)
	Label      string  // класс объекта, для модели трещин обычно "crack"
}

// Center возвращает координаты центра области
func (b BoundingBox) Center() (x, y int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area возвращает площадь области в пикселях
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}
