// Command pdfcrop renders every page of a PDF, trims the blank margins and
// writes the pages as page-001.jpg, page-002.jpg, ... into a directory.
// File names follow the page number, so a page skipped after a render error
// leaves a gap.
//
// The conversion runs in-process unless -server points at a running
// pagecrop service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/drummonds/pagecrop/client"
	config "github.com/drummonds/pagecrop/config"
	engine "github.com/drummonds/pagecrop/engine"
	"github.com/drummonds/pagecrop/engine/pdfrenderer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = Logger
	engine.Logger = Logger
	pdfrenderer.Logger = Logger
}

func main() {
	serverConfig, logger := config.SetupCLI()
	injectGlobals(logger)

	if err := run(os.Args[1:], serverConfig, os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "pdfcrop:", err)
		}
		os.Exit(1)
	}
}

type options struct {
	dpi, threshold, quality int
	renderer                string
	workers                 int
	policy                  string
	server                  string
	out                     string
	input                   string
}

func parseFlags(args []string, serverConfig config.ServerConfig, stderr io.Writer) (options, error) {
	var opts options
	flags := flag.NewFlagSet("pdfcrop", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.IntVar(&opts.dpi, "dpi", serverConfig.DefaultDPI, "render resolution in dots per inch")
	flags.IntVar(&opts.threshold, "threshold", serverConfig.DefaultThreshold, "luminance below which a pixel is content (0-255)")
	flags.IntVar(&opts.quality, "quality", serverConfig.DefaultQuality, "JPEG quality (0-100)")
	flags.StringVar(&opts.renderer, "renderer", serverConfig.Renderer, "renderer backend: pdfium or fitz")
	flags.IntVar(&opts.workers, "workers", 1, "PDFium instances to start")
	flags.StringVar(&opts.policy, "policy", serverConfig.PageErrorPolicy, "what to do with pages that fail to render: fail, skip or placeholder")
	flags.StringVar(&opts.server, "server", "", "convert through the pagecrop server at this URL instead of in-process")
	flags.StringVar(&opts.out, "out", ".", "directory to write the page images to")
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "usage: pdfcrop [flags] file.pdf")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return opts, errors.New("expected exactly one PDF file")
	}
	opts.input = flags.Arg(0)
	return opts, nil
}

func run(args []string, serverConfig config.ServerConfig, stdout io.Writer) error {
	opts, err := parseFlags(args, serverConfig, os.Stderr)
	if err != nil {
		return err
	}
	req := engine.ConversionRequest{DPI: opts.dpi, Threshold: opts.threshold, Quality: opts.quality}
	if err := req.Validate(serverConfig.MaxDPI); err != nil {
		return err
	}

	var images []client.PageImage
	if opts.server != "" {
		images, err = convertRemote(opts)
	} else {
		images, err = convertLocal(opts, req, serverConfig.MaxDPI)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.out, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, image := range images {
		path := filepath.Join(opts.out, fmt.Sprintf("page-%03d.jpg", image.Index+1))
		if err := os.WriteFile(path, image.JPEG, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(stdout, "%s (%s)\n", path, humanize.Bytes(uint64(len(image.JPEG))))
	}
	return nil
}

func convertLocal(opts options, req engine.ConversionRequest, maxDPI int) ([]client.PageImage, error) {
	pdf, err := os.ReadFile(opts.input)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	renderer, err := pdfrenderer.NewRenderer(opts.renderer, opts.workers)
	if err != nil {
		return nil, err
	}
	defer renderer.Close()

	converter := &engine.Converter{Renderer: renderer, Policy: opts.policy, MaxDPI: maxDPI}
	result, err := converter.Convert(pdf, req)
	if err != nil {
		return nil, err
	}
	images := make([]client.PageImage, 0, len(result.Pages))
	for _, page := range result.Pages {
		if page.Error != "" {
			Logger.Warn("Page failed to render", "page", page.Index+1, "error", page.Error)
		}
		if page.JPEG != nil {
			images = append(images, client.PageImage{Index: page.Index, JPEG: page.JPEG})
		}
	}
	return images, nil
}

func convertRemote(opts options) ([]client.PageImage, error) {
	c := client.New(opts.server)
	response, err := c.ConvertFile(context.Background(), opts.input, client.Options{
		DPI:          opts.dpi,
		Threshold:    opts.threshold,
		SetThreshold: true,
		Quality:      opts.quality,
		SetQuality:   true,
	})
	if err != nil {
		return nil, err
	}
	for _, page := range response.Pages {
		if page.Error != "" {
			Logger.Warn("Page failed to render", "page", page.Index+1, "error", page.Error)
		}
	}
	return response.PageImages()
}
