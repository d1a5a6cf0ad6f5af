package xrmodel

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/tiff"
	mst "github.com/flywave/go-mst"
	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
)

// ResolveTexturePath maps a texture reference embedded in an asset to a
// file in resourceDir. Any directory part of the reference is dropped, so
// exporter-specific subpaths like "C:\maps\wood.png" or
// "textures/sub/wood.png" both resolve to resourceDir/wood.png.
func ResolveTexturePath(resourceDir, ref string) string {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, "\\", "/"))
	if ref == "" {
		return ""
	}
	_, fileName := filepath.Split(ref)
	if fileName == "" {
		return ""
	}
	return filepath.Join(resourceDir, fileName)
}

func decodeTexture(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	_, ft, err := image.DecodeConfig(f)
	if err != nil {
		// formats without a registered decoder fall back to the extension
		ft = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return readImage(f, ft)
}

func readImage(rd io.Reader, ft string) (image.Image, error) {
	switch ft {
	case "jpeg", "jpg":
		return jpeg.Decode(rd)
	case "png":
		return png.Decode(rd)
	case "gif":
		return gif.Decode(rd)
	case "bmp":
		return bmp.Decode(rd)
	case "tif", "tiff":
		return tiff.Decode(rd)
	default:
		return nil, errors.New("unknown image format")
	}
}

// fitTexture shrinks img so neither side exceeds maxSize, keeping the
// aspect ratio. maxSize <= 0 disables the limit.
func fitTexture(img image.Image, maxSize int) image.Image {
	bd := img.Bounds()
	if maxSize <= 0 || (bd.Dx() <= maxSize && bd.Dy() <= maxSize) {
		return img
	}
	return resize.Thumbnail(uint(maxSize), uint(maxSize), img, resize.Lanczos3)
}

// convertTex loads a texture file into an RGBA, zlib-compressed MST texture.
func convertTex(path string, texId int, maxSize int) (*mst.Texture, error) {
	img, err := decodeTexture(path)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", path, err)
	}
	img = fitTexture(img, maxSize)
	bd := img.Bounds()
	buf := make([]byte, 0, bd.Dx()*bd.Dy()*4)
	for y := bd.Min.Y; y < bd.Max.Y; y++ {
		for x := bd.Min.X; x < bd.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			buf = append(buf, c.R, c.G, c.B, c.A)
		}
	}

	t := &mst.Texture{}
	t.Id = int32(texId)
	t.Format = mst.TEXTURE_FORMAT_RGBA
	t.Size = [2]uint64{uint64(bd.Dx()), uint64(bd.Dy())}
	t.Compressed = mst.TEXTURE_COMPRESSED_ZLIB
	t.Data = mst.CompressImage(buf)
	return t, nil
}

// copyTexture copies src into dir under its base name and returns that
// name, which is what the exported model references.
func copyTexture(src, dir string) (string, error) {
	name := filepath.Base(src)
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	return name, out.Close()
}

func mimeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	return ""
}
