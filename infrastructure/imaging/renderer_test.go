package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestFit(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, maxW, maxH int
		wantW, wantH           int
	}{
		{"16:9 limited by width", 320, 180, 40, 40, 40, 23},
		{"16:9 limited by height", 320, 180, 60, 20, 36, 20},
		{"upscales small sources", 4, 2, 2, 10, 2, 1},
		{"degenerate target", 320, 180, 0, 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := Fit(tt.srcW, tt.srcH, tt.maxW, tt.maxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestEncode_HalfBlocks(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 255, 0, 255})
	img.SetRGBA(0, 1, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(1, 1, color.RGBA{255, 255, 255, 255})

	out := Encode(img, 2, 1)

	want := "\x1b[38;2;255;0;0m\x1b[48;2;0;0;255m▀" +
		"\x1b[38;2;0;255;0m\x1b[48;2;255;255;255m▀" +
		"\x1b[0m"
	assert.Equal(t, want, out)
}

func TestEncode_OddHeightLeavesBackground(t *testing.T) {
	out := Encode(solid(4, 2, color.RGBA{10, 20, 30, 255}), 2, 5)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, 2, strings.Count(out, "▀"))
	assert.Contains(t, out, "\x1b[49m")
}

func TestEncode_RespectsCellBudget(t *testing.T) {
	out := Encode(solid(320, 180, color.RGBA{200, 0, 0, 255}), 30, 6)

	lines := strings.Split(out, "\n")
	assert.LessOrEqual(t, len(lines), 6)
	for _, line := range lines {
		assert.LessOrEqual(t, strings.Count(line, "▀"), 30)
	}
	assert.Len(t, lines, 6)
}

func TestRenderer_Render(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(8, 4, color.RGBA{0, 128, 255, 255})))

	userAgents := make(chan string, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgents <- r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(buf.Bytes())
		case "/garbage.jpg":
			_, _ = w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewRenderer(srv.Client(), 0, 1, "yt-subscription-cli/test")

	out, err := r.Render(context.Background(), srv.URL+"/ok.png", 8, 2)
	require.NoError(t, err)
	assert.Equal(t, "yt-subscription-cli/test", <-userAgents)
	assert.Equal(t, 2, len(strings.Split(out, "\n")))
	assert.Contains(t, out, "38;2;0;128;255m")

	_, err = r.Render(context.Background(), srv.URL+"/missing.jpg", 8, 2)
	assert.ErrorContains(t, err, "unexpected status 404")

	_, err = r.Render(context.Background(), srv.URL+"/garbage.jpg", 8, 2)
	assert.ErrorContains(t, err, "decode")
}

func TestRenderer_CancelledWhileThrottled(t *testing.T) {
	r := NewRenderer(http.DefaultClient, 0.001, 1, "")
	require.True(t, r.limiter.Allow(), "drain the only token")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Render(ctx, "http://127.0.0.1:1/x.png", 4, 4)
	assert.ErrorContains(t, err, "wait for download slot")
}
