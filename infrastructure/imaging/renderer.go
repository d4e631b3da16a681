package imaging

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"strings"

	// decoders for the formats thumbnail hosts serve
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"
)

const maxImageBytes = 5 << 20

// Renderer downloads thumbnails and draws them with half-block characters, so every
// terminal cell shows two vertically stacked pixels.
type Renderer struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// NewRenderer throttles downloads to rps requests per second. rps <= 0 disables throttling.
func NewRenderer(httpClient *http.Client, rps float64, burst int, userAgent string) *Renderer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Renderer{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, max(1, burst)),
		userAgent:  userAgent,
	}
}

func (r *Renderer) Render(ctx context.Context, url string, width, height int) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for download slot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", url, err)
	}
	return Encode(img, width, height), nil
}

// Fit returns the largest size with src's aspect ratio inside maxW x maxH.
func Fit(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 || maxW <= 0 || maxH <= 0 {
		return 0, 0
	}
	scale := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	w := max(1, min(maxW, int(math.Round(float64(srcW)*scale))))
	h := max(1, min(maxH, int(math.Round(float64(srcH)*scale))))
	return w, h
}

// Encode draws img into at most width x height cells using 24-bit colour escapes.
func Encode(img image.Image, width, height int) string {
	b := img.Bounds()
	w, h := Fit(b.Dx(), b.Dy(), width, height*2)
	if w == 0 {
		return ""
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	var sb strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			top := dst.RGBAAt(x, y)
			if y+1 < h {
				bottom := dst.RGBAAt(x, y+1)
				fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀", top.R, top.G, top.B, bottom.R, bottom.G, bottom.B)
			} else {
				fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm\x1b[49m▀", top.R, top.G, top.B)
			}
		}
		sb.WriteString("\x1b[0m")
	}
	return sb.String()
}
