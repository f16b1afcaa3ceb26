package conversion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// PageRenderer rasterizes every page of a paged document into outDir and
// returns the raw page files in page order.
type PageRenderer interface {
	Render(ctx context.Context, pdfPath, outDir string) ([]string, error)
}

const rawPagePrefix = "page"

var rawPageRe = regexp.MustCompile(`^` + rawPagePrefix + `-0*(\d+)\.png$`)

// PopplerRenderer shells out to pdftoppm.
type PopplerRenderer struct {
	Bin string
	DPI int
	Fs  afero.Fs
}

func (r PopplerRenderer) Render(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	bin := r.Bin
	if bin == "" {
		bin = "pdftoppm"
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 110
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-png", "-r", strconv.Itoa(dpi), pdfPath, filepath.Join(outDir, rawPagePrefix))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if isNotFound(err) {
			return nil, newError(KindToolMissing, "", fmt.Errorf("%s: %w", bin, err))
		}
		return nil, newError(KindRender, "", fmt.Errorf("%s: %w: %s", bin, err, strings.TrimSpace(stderr.String())))
	}
	return ListRawPages(r.Fs, outDir)
}

// ListRawPages returns page-N.png files in outDir ordered by N.
func ListRawPages(fs afero.Fs, outDir string) ([]string, error) {
	entries, err := afero.ReadDir(fs, outDir)
	if err != nil {
		return nil, newError(KindRender, "", err)
	}
	type numbered struct {
		n    int
		path string
	}
	var pages []numbered
	for _, fi := range entries {
		m := rawPageRe.FindStringSubmatch(fi.Name())
		if m == nil || fi.IsDir() {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		pages = append(pages, numbered{n: n, path: filepath.Join(outDir, fi.Name())})
	}
	if len(pages) == 0 {
		return nil, newError(KindRender, "", ErrNoPages)
	}
	slices.SortFunc(pages, func(a, b numbered) int { return a.n - b.n })
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, afero.ErrFileNotFound)
}
