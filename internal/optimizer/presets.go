package optimizer

import (
	"path/filepath"
	"strings"
)

type ResizeMethod string

const (
	ResizeFit   ResizeMethod = "fit"
	ResizeCover ResizeMethod = "cover"
	ResizeScale ResizeMethod = "scale"
	ResizeThumb ResizeMethod = "thumb"
)

type Resize struct {
	Method ResizeMethod `json:"method"`
	Width  int          `json:"width,omitempty"`
	Height int          `json:"height,omitempty"`
}

// Options selects the transformations applied after compression. The zero value
// compresses only.
type Options struct {
	Resize *Resize
	// Convert is a target MIME type: image/webp, image/png or image/jpeg.
	Convert string
}

var Presets = map[string]Options{
	"thumbnail": {Resize: &Resize{Method: ResizeCover, Width: 300, Height: 300}},
	"medium":    {Resize: &Resize{Method: ResizeFit, Width: 800, Height: 600}},
	"large":     {Resize: &Resize{Method: ResizeFit, Width: 1920, Height: 1080}},
	"original":  {},
}

// Preset returns the named preset, falling back to medium.
func Preset(name string) Options {
	if p, ok := Presets[name]; ok {
		return p
	}
	return Presets["medium"]
}

// FitWithin bounds an image to width×height without cropping.
func FitWithin(width, height int) Options {
	return Options{Resize: &Resize{Method: ResizeFit, Width: width, Height: height}}
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// ValidExtension reports whether the file name has a format the service accepts.
func ValidExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}
