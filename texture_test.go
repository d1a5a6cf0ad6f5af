package xrmodel

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	mst "github.com/flywave/go-mst"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func TestResolveTexturePath(t *testing.T) {
	dir := filepath.Join("models", "fbx")
	tests := []struct {
		ref  string
		want string
	}{
		{"wood.png", filepath.Join(dir, "wood.png")},
		{`C:\Users\artist\maps\wood.png`, filepath.Join(dir, "wood.png")},
		{"textures/sub/wood.png", filepath.Join(dir, "wood.png")},
		{"  ../wood.png ", filepath.Join(dir, "wood.png")},
		{"", ""},
		{"textures/", ""},
	}
	for _, tt := range tests {
		if got := ResolveTexturePath(dir, tt.ref); got != tt.want {
			t.Errorf("ResolveTexturePath(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestConvertTex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "albedo.png")
	writePNG(t, path, 8, 4)

	tex, err := convertTex(path, 3, 0)
	if err != nil {
		t.Fatalf("convertTex: %v", err)
	}
	if tex.Id != 3 || tex.Size != [2]uint64{8, 4} {
		t.Errorf("unexpected texture id %d size %v", tex.Id, tex.Size)
	}
	if tex.Format != mst.TEXTURE_FORMAT_RGBA || len(tex.Data) == 0 {
		t.Errorf("unexpected texture format %v with %d bytes", tex.Format, len(tex.Data))
	}

	tex, err = convertTex(path, 0, 4)
	if err != nil {
		t.Fatalf("convertTex: %v", err)
	}
	if tex.Size != [2]uint64{4, 2} {
		t.Errorf("expected texture shrunk to 4x2, got %v", tex.Size)
	}

	if _, err := convertTex(filepath.Join(t.TempDir(), "missing.png"), 0, 0); err == nil {
		t.Error("expected error for missing texture")
	}
}

func TestFitTexture(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	if got := fitTexture(img, 0); got != image.Image(img) {
		t.Error("zero limit must keep the image")
	}
	if got := fitTexture(img, 64); got != image.Image(img) {
		t.Error("image within the limit must be kept")
	}
	b := fitTexture(img, 16).Bounds()
	if b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("expected 16x8, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestCopyTexture(t *testing.T) {
	src := filepath.Join(t.TempDir(), "wood.png")
	writePNG(t, src, 2, 2)
	dst := t.TempDir()

	name, err := copyTexture(src, dst)
	if err != nil {
		t.Fatalf("copyTexture: %v", err)
	}
	if name != "wood.png" {
		t.Errorf("name = %q", name)
	}
	a, _ := os.ReadFile(src)
	b, err := os.ReadFile(filepath.Join(dst, name))
	if err != nil || string(a) != string(b) {
		t.Errorf("copy differs from source: %v", err)
	}
}

func TestMimeFromPath(t *testing.T) {
	tests := map[string]string{
		"a.PNG":  "image/png",
		"a.jpeg": "image/jpeg",
		"a.tif":  "image/tiff",
		"a.dds":  "",
	}
	for path, want := range tests {
		if got := mimeFromPath(path); got != want {
			t.Errorf("mimeFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}
