package encoder

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	_ "github.com/chai2010/webp"

	"github.com/Hyphonical/Scout/internal/embedding"
	"github.com/Hyphonical/Scout/internal/scouterr"
)

// ImageNet per-channel normalization constants, applied after rescaling
// pixel values to [0,1].
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// EncodeImagePaths decodes, preprocesses, and embeds each image at paths in
// a single batch. The first file that fails to decode aborts the whole
// batch and its error is returned with no vectors; partial results come
// from calling EncodeImagePaths one path at a time.
func (o *Orchestrator) EncodeImagePaths(paths []string) ([]embedding.Vector, error) {
	rasters := make([]image.Image, len(paths))
	for i, p := range paths {
		img, err := decodeImage(p)
		if err != nil {
			return nil, err
		}
		rasters[i] = img
	}
	return o.EncodeImages(rasters)
}

// decodeImage opens and decodes path, wrapping decode failures as
// MediaUnreadable.
func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("encoder: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("encoder: decode %s: %w: %v", path, scouterr.ErrMediaUnreadable, err)
	}
	return img, nil
}

// EncodeImages preprocesses and embeds a batch of already-decoded rasters.
func (o *Orchestrator) EncodeImages(rasters []image.Image) ([]embedding.Vector, error) {
	if len(rasters) == 0 {
		return nil, nil
	}
	if err := o.ensureVision(); err != nil {
		return nil, err
	}

	batch := len(rasters)
	flat := make([]float32, batch*3*imageSize*imageSize)
	for i, img := range rasters {
		preprocessInto(flat[i*3*imageSize*imageSize:], img)
	}

	shape := ort.NewShape(int64(batch), 3, int64(imageSize), int64(imageSize))
	input, err := ort.NewTensor(shape, flat)
	if err != nil {
		return nil, fmt.Errorf("encoder: pixel_values tensor: %w", err)
	}
	defer input.Destroy()

	o.mu.Lock()
	outputs := []ort.Value{nil}
	err = o.visionSession.Run([]ort.Value{input}, outputs)
	o.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("encoder: vision session run: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("encoder: unexpected vision output type")
	}
	outShape := tensor.GetShape()
	dim := int(outShape[len(outShape)-1])
	return toEmbeddings(tensor.GetData(), dim)
}

// preprocessInto resizes img to imageSize×imageSize with an antialiased
// bilinear filter, rescales to [0,1], applies ImageNet per-channel
// normalization, and writes it channel-first (C,H,W) into dst.
func preprocessInto(dst []float32, img image.Image) {
	resized := imaging.Resize(img, imageSize, imageSize, imaging.Linear)
	rgba := imaging.Clone(resized) // ensure a concrete RGBA raster for fast pixel access

	plane := imageSize * imageSize
	for y := 0; y < imageSize; y++ {
		for x := 0; x < imageSize; x++ {
			r, g, b, _ := rgba.At(x, y).RGBA()
			idx := y*imageSize + x
			dst[0*plane+idx] = (float32(r)/65535.0 - imagenetMean[0]) / imagenetStd[0]
			dst[1*plane+idx] = (float32(g)/65535.0 - imagenetMean[1]) / imagenetStd[1]
			dst[2*plane+idx] = (float32(b)/65535.0 - imagenetMean[2]) / imagenetStd[2]
		}
	}
}
