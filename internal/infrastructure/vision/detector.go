//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"crack-watch/internal/domain/entity"
)

// YOLODetector ищет трещины моделью YOLOv8, экспортированной в ONNX.
type YOLODetector struct {
	opts Options
	net  gocv.Net
	mu   sync.Mutex // gocv.Net не потокобезопасна
}

// NewYOLODetector загружает модель и настраивает бэкенд.
func NewYOLODetector(opts Options) (*YOLODetector, error) {
	opts = opts.withDefaults()

	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}

	net := gocv.ReadNetFromONNX(opts.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", opts.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLODetector{opts: opts, net: net}, nil
}

// Close освобождает сеть
func (d *YOLODetector) Close() error {
	return d.net.Close()
}

// Detect прогоняет изображение через сеть и возвращает рамки после NMS.
func (d *YOLODetector) Detect(ctx context.Context, imagePath string) (*entity.InferenceResult, error) {
	_ = ctx

	mat := gocv.IMRead(imagePath, gocv.IMReadColor)
	if mat.Empty() {
		return nil, fmt.Errorf("failed to read image %s", imagePath)
	}
	defer mat.Close()

	size := d.opts.InputSize
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	boxes, err := d.decode(output, mat.Cols(), mat.Rows())
	if err != nil {
		return nil, err
	}

	return &entity.InferenceResult{
		ImagePath:   imagePath,
		ImageWidth:  mat.Cols(),
		ImageHeight: mat.Rows(),
		Boxes:       boxes,
	}, nil
}

// decode разбирает выход вида [1, 4+classes, candidates]: cx, cy, w, h и оценки классов.
func (d *YOLODetector) decode(output gocv.Mat, width, height int) ([]entity.BoundingBox, error) {
	sizes := output.Size()
	if len(sizes) != 3 || sizes[1] < 5 {
		return nil, fmt.Errorf("unexpected model output shape %v", sizes)
	}
	attrs, candidates := sizes[1], sizes[2]

	flat := output.Reshape(1, attrs)
	defer flat.Close()

	rows := gocv.NewMat()
	defer rows.Close()
	gocv.Transpose(flat, &rows)

	xScale := float32(width) / float32(d.opts.InputSize)
	yScale := float32(height) / float32(d.opts.InputSize)
	minScore := float32(d.opts.Confidence)

	rects := make([]image.Rectangle, 0)
	scores := make([]float32, 0)
	classes := make([]int, 0)
	for i := 0; i < candidates; i++ {
		best, class := float32(0), 0
		for c := 4; c < attrs; c++ {
			if score := rows.GetFloatAt(i, c); score > best {
				best, class = score, c-4
			}
		}
		if best < minScore {
			continue
		}

		cx, cy := rows.GetFloatAt(i, 0), rows.GetFloatAt(i, 1)
		w, h := rows.GetFloatAt(i, 2), rows.GetFloatAt(i, 3)
		left := int((cx - w/2) * xScale)
		top := int((cy - h/2) * yScale)
		rects = append(rects, image.Rect(left, top, left+int(w*xScale), top+int(h*yScale)))
		scores = append(scores, best)
		classes = append(classes, class)
	}

	if len(rects) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(rects, scores, minScore, float32(d.opts.NMS))
	boxes := make([]entity.BoundingBox, 0, len(indices))
	for _, idx := range indices {
		r := rects[idx].Intersect(image.Rect(0, 0, width, height))
		if r.Empty() {
			continue
		}
		boxes = append(boxes, entity.BoundingBox{
			X:          r.Min.X,
			Y:          r.Min.Y,
			Width:      r.Dx(),
			Height:     r.Dy(),
			Confidence: float64(scores[idx]),
			Label:      d.opts.label(classes[idx]),
		})
	}

	return boxes, nil
}

// SaveAnnotated рисует рамки на исходном изображении и сохраняет JPEG.
func (d *YOLODetector) SaveAnnotated(result *entity.InferenceResult, outputPath string) error {
	if result == nil {
		return errors.New("empty inference result")
	}

	mat := gocv.IMRead(result.ImagePath, gocv.IMReadColor)
	if mat.Empty() {
		return fmt.Errorf("failed to read image %s", result.ImagePath)
	}
	defer mat.Close()

	red := color.RGBA{R: 255, A: 255}
	for _, box := range result.Boxes {
		rect := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height)
		gocv.Rectangle(&mat, rect, red, 2)

		label := fmt.Sprintf("%s %.2f", box.Label, box.Confidence)
		gocv.PutText(&mat, label, image.Pt(box.X, maxInt(box.Y-5, 12)), gocv.FontHersheySimplex, 0.5, red, 1)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if ok := gocv.IMWrite(outputPath, mat); !ok {
		return fmt.Errorf("failed to write %s", outputPath)
	}

	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
