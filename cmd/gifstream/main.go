package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
	"golang.org/x/image/draw"

	"github.com/cam-per/gifstream/gif"
	"github.com/cam-per/gifstream/gif/anim"
	"github.com/cam-per/gifstream/internal/rendering"
	"github.com/cam-per/gifstream/utils"
)

func main() {
	cmd := &cli.Command{
		Name:  "gifstream",
		Usage: "inspect, extract and play animated GIF streams",
		Commands: []*cli.Command{
			infoCommand(),
			dumpCommand(),
			extractCommand(),
			playCommand(),
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "gifstream:", err)
		os.Exit(1)
	}
}

func readArg(cmd *cli.Command) (string, []byte, error) {
	if cmd.Args().Len() != 1 {
		return "", nil, fmt.Errorf("expected exactly one gif file argument")
	}
	path := cmd.Args().First()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return path, data, nil
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "print the stream structure and per-strategy memory cost",
		ArgsUsage: "<file.gif>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "frames", Aliases: []string{"f"}, Usage: "list every frame"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path, data, err := readArg(cmd)
			if err != nil {
				return err
			}
			doc, err := gif.DecodeCompressed(data)
			if err != nil {
				return err
			}
			printInfo(path, data, doc, cmd.Bool("frames"))
			return nil
		},
	}
}

func printInfo(path string, data []byte, doc *gif.Document, listFrames bool) {
	cyan := color.New(color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	h := doc.Header
	fmt.Printf("%s  GIF%s, %s\n", cyan(filepath.Base(path)), h.Version, humanize.IBytes(uint64(len(data))))
	fmt.Printf("  screen      %dx%d, aspect byte %d\n", h.Width, h.Height, h.AspectRatio)
	if h.HasGlobalPalette() {
		sorted := ""
		if h.Sorted() {
			sorted = ", sorted"
		}
		fmt.Printf("  palette     %d colors, background index %d%s\n", len(doc.Global), h.BackgroundIndex, sorted)
	} else {
		fmt.Printf("  palette     none\n")
	}
	fmt.Printf("  frames      %d over %v\n", doc.FrameCount(), doc.Duration())

	cached, stream, compressed := memoryCost(doc)
	fmt.Printf("  memory      cache %s, stream %s, compressed %s\n",
		humanize.IBytes(cached), humanize.IBytes(stream), humanize.IBytes(compressed))

	if !listFrames {
		return
	}
	for i, f := range doc.Frames {
		r := f.Rect()
		line := fmt.Sprintf("  frame %-4d  %dx%d at (%d,%d), delay %v, disposal %s, data %s",
			i, r.Dx(), r.Dy(), r.Min.X, r.Min.Y,
			time.Duration(f.DelayHundredths())*10*time.Millisecond,
			f.Disposal(), humanize.IBytes(uint64(len(f.Compressed))))
		if f.Palette != nil {
			line += fmt.Sprintf(", local palette %d", len(f.Palette))
		}
		if t := f.TransparentIndex(); t >= 0 {
			line += fmt.Sprintf(", transparent %d", t)
		}
		fmt.Println(faint(line))
	}
}

// memoryCost estimates the resident bytes of each playback strategy: one
// composited RGBA buffer per frame for the cache, retained index streams
// plus canvas and snapshot for stream, retained compressed bytes plus the
// index scratch for compressed.
func memoryCost(doc *gif.Document) (cached, stream, compressed uint64) {
	pixels := uint64(doc.Width()) * uint64(doc.Height())
	canvas := pixels * 4

	cached = canvas * uint64(doc.FrameCount())
	stream = 2 * canvas
	compressed = 2*canvas + pixels
	for _, f := range doc.Frames {
		r := f.Rect()
		stream += uint64(r.Dx()) * uint64(r.Dy())
		compressed += uint64(len(f.Compressed))
	}
	return cached, stream, compressed
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "hex dump a byte range of the file",
		ArgsUsage: "<file.gif>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "first byte to dump"},
			&cli.IntFlag{Name: "length", Aliases: []string{"n"}, Value: 256, Usage: "bytes to dump, 0 for the rest of the file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, data, err := readArg(cmd)
			if err != nil {
				return err
			}
			off := int(cmd.Int("offset"))
			n := int(cmd.Int("length"))
			if off < 0 || off > len(data) {
				return fmt.Errorf("offset %d outside file of %d bytes", off, len(data))
			}
			end := len(data)
			if n > 0 && off+n < end {
				end = off + n
			}
			utils.HexDump(os.Stdout, data[off:end], int64(off))
			return nil
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "write composited frames as PNG files",
		ArgsUsage: "<file.gif>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "output directory"},
			&cli.BoolFlag{Name: "sheet", Usage: "write one contact sheet instead of per-frame files"},
			&cli.IntFlag{Name: "scale", Value: 1, Usage: "integer upscale factor for sheet cells"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path, data, err := readArg(cmd)
			if err != nil {
				return err
			}
			a, err := anim.NewCached(data)
			if err != nil {
				return err
			}
			dir := cmd.String("out")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if cmd.Bool("sheet") {
				return writeSheet(a, filepath.Join(dir, stem+"_sheet.png"), int(cmd.Int("scale")))
			}
			return writeFrames(a, dir, stem)
		},
	}
}

func writeFrames(a *anim.Cached, dir, stem string) error {
	for i := 0; i < a.FrameCount(); i++ {
		img, err := a.Image(i)
		if err != nil {
			return err
		}
		name := filepath.Join(dir, fmt.Sprintf("%s_%03d.png", stem, i))
		if err := writePNG(name, img); err != nil {
			return err
		}
	}
	fmt.Printf("wrote %d frames to %s\n", a.FrameCount(), dir)
	return nil
}

// writeSheet tiles every frame into one near-square grid, scaling each cell
// with nearest neighbor to keep palette pixels crisp.
func writeSheet(a *anim.Cached, name string, scale int) error {
	if scale < 1 {
		scale = 1
	}
	n := a.FrameCount()
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	cw, ch := a.Width()*scale, a.Height()*scale

	sheet := image.NewRGBA(image.Rect(0, 0, cols*cw, rows*ch))
	for i := 0; i < n; i++ {
		img, err := a.Image(i)
		if err != nil {
			return err
		}
		x, y := (i%cols)*cw, (i/cols)*ch
		draw.NearestNeighbor.Scale(sheet, image.Rect(x, y, x+cw, y+ch), img, img.Bounds(), draw.Src, nil)
	}
	if err := writePNG(name, sheet); err != nil {
		return err
	}
	fmt.Printf("wrote %dx%d sheet %s\n", cols, rows, name)
	return nil
}

func writePNG(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "play the animation in an OpenGL window",
		ArgsUsage: "<file.gif>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "strategy", Aliases: []string{"s"}, Value: "stream", Usage: "playback strategy: cache, stream or compressed"},
			&cli.IntFlag{Name: "scale", Value: 4, Usage: "window pixels per gif pixel"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path, data, err := readArg(cmd)
			if err != nil {
				return err
			}
			strategy, err := anim.ParseStrategy(cmd.String("strategy"))
			if err != nil {
				return err
			}
			ticker, err := openTicker(data, strategy)
			if err != nil {
				return err
			}
			return rendering.Play(ticker, filepath.Base(path), int(cmd.Int("scale")))
		},
	}
}

// openTicker builds the Ticker for a strategy; the full cache goes through
// the Loop adapter.
func openTicker(data []byte, s anim.Strategy) (anim.Ticker, error) {
	if s == anim.FullCache {
		c, err := anim.NewCached(data)
		if err != nil {
			return nil, err
		}
		return anim.NewLoop(c), nil
	}
	a, err := anim.Open(data, s)
	if err != nil {
		return nil, err
	}
	return a.(anim.Ticker), nil
}
