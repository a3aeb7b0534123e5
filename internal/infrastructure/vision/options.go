package vision

const (
	// DefaultInputSize сторона входа YOLOv8
	DefaultInputSize = 640
	// DefaultConfidence минимальная уверенность рамки
	DefaultConfidence = 0.25
	// DefaultNMS порог подавления пересекающихся рамок
	DefaultNMS = 0.45
)

// Options параметры модели
type Options struct {
	ModelPath  string
	InputSize  int
	Confidence float64
	NMS        float64
	Labels     []string // имена классов модели; у модели трещин один класс
}

func (o Options) withDefaults() Options {
	if o.InputSize <= 0 {
		o.InputSize = DefaultInputSize
	}
	if o.Confidence <= 0 {
		o.Confidence = DefaultConfidence
	}
	if o.NMS <= 0 {
		o.NMS = DefaultNMS
	}
	if len(o.Labels) == 0 {
		o.Labels = []string{"crack"}
	}
	return o
}

func (o Options) label(class int) string {
	if class >= 0 && class < len(o.Labels) {
		return o.Labels[class]
	}
	return "crack"
}
