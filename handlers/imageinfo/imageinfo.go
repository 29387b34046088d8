// Package imageinfo reports image dimensions without decoding pixel data.
package imageinfo

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gobeaver/fgen"
)

// ID is the catalog identifier used by the CLI preset.
const ID = "imageinfo"

// Dimensions is the output of the dimensions operation.
type Dimensions struct {
	Width  int    `json:"width" yaml:"width" toml:"width"`
	Height int    `json:"height" yaml:"height" toml:"height"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Info is the output of the info operation.
type Info struct {
	Dimensions `yaml:",inline"`
	Size       int64   `json:"size" yaml:"size" toml:"size"`
	MIME       string  `json:"mime" yaml:"mime" toml:"mime"`
	Megapixels float64 `json:"megapixels" yaml:"megapixels" toml:"megapixels"`
}

// Handler reads image headers.
type Handler struct {
	*fgen.Operations
}

// New creates an imageinfo handler.
func New() *Handler {
	h := &Handler{Operations: fgen.NewOperations()}
	_ = h.Register("dimensions", h.dimensions)
	_ = h.Register("info", h.info)
	return h
}

// Factory returns a catalog factory for the handler.
func Factory() fgen.HandlerFactory {
	return func() (fgen.Handler, error) {
		return New(), nil
	}
}

func (h *Handler) dimensions(ctx context.Context, call *fgen.Call) (fgen.Output, error) {
	return decode(ctx, call)
}

func (h *Handler) info(ctx context.Context, call *fgen.Call) (fgen.Output, error) {
	dim, err := decode(ctx, call)
	if err != nil {
		return nil, err
	}
	stat, err := call.Source.Stat(ctx, call.Filename)
	if err != nil {
		return nil, err
	}
	return Info{
		Dimensions: dim,
		Size:       stat.Size,
		MIME:       call.FileType.MIME,
		Megapixels: float64(dim.Width*dim.Height) / 1e6,
	}, nil
}

func decode(ctx context.Context, call *fgen.Call) (Dimensions, error) {
	rc, err := call.Source.Read(ctx, call.Filename)
	if err != nil {
		return Dimensions{}, err
	}
	defer rc.Close()

	cfg, format, err := image.DecodeConfig(rc)
	if err != nil {
		return Dimensions{}, fmt.Errorf("decode %s: %w", call.Filename, err)
	}
	if minW := call.Options.Int("min_width", 0); cfg.Width < minW {
		return Dimensions{}, fmt.Errorf("%s: width %d below %d", call.Filename, cfg.Width, minW)
	}
	if minH := call.Options.Int("min_height", 0); cfg.Height < minH {
		return Dimensions{}, fmt.Errorf("%s: height %d below %d", call.Filename, cfg.Height, minH)
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}
