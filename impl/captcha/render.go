package captcha

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math/rand"

	svg "github.com/ajstarks/svgo"
)

const (
	imageWidth  = 150
	imageHeight = 50
	noiseLines  = 4
)

var palette = []string{"#f5f5f5", "#ffd54f", "#80deea", "#ef9a9a", "#a5d6a7"}

// Render draws text as an SVG and returns it as a base64 data URI.
func Render(text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("empty text")
	}
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(imageWidth, imageHeight)
	canvas.Rect(0, 0, imageWidth, imageHeight, "fill:#1b1b1b")

	for n := 0; n < noiseLines; n++ {
		canvas.Line(
			rand.Intn(imageWidth), rand.Intn(imageHeight),
			rand.Intn(imageWidth), rand.Intn(imageHeight),
			fmt.Sprintf("stroke:%s;stroke-width:1;opacity:0.6", palette[rand.Intn(len(palette))]),
		)
	}

	step := (imageWidth - 20) / len(text)
	for n, r := range []rune(text) {
		x := 12 + n*step + rand.Intn(4)
		y := 34 + rand.Intn(8) - 4
		canvas.TranslateRotate(x, y, float64(rand.Intn(31)-15))
		canvas.Text(0, 0, string(r),
			fmt.Sprintf("font-family:Verdana,sans-serif;font-size:26px;font-weight:700;fill:%s", palette[rand.Intn(len(palette))]))
		canvas.Gend()
	}
	canvas.End()

	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
