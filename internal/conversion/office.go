package conversion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const DefaultOfficeTimeout = 30 * time.Second

// DocumentConverter turns an office document into a PDF inside outDir.
// Failures are ConversionErrors of kind timeout, tool_missing or tool_failed.
type DocumentConverter interface {
	Convert(ctx context.Context, srcPath, outDir string) (string, error)
}

// OfficeConverter runs a headless office suite with a hard timeout. The
// process is killed when the timeout expires.
type OfficeConverter struct {
	Bin     string
	Timeout time.Duration
	Fs      afero.Fs
	// Args builds the command line; nil means soffice conventions.
	Args func(srcPath, outDir string) []string
}

func SofficeArgs(srcPath, outDir string) []string {
	return []string{"--headless", "--convert-to", "pdf", "--outdir", outDir, srcPath}
}

func (c OfficeConverter) Convert(ctx context.Context, srcPath, outDir string) (string, error) {
	bin := c.Bin
	if bin == "" {
		bin = "soffice"
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultOfficeTimeout
	}
	argsFn := c.Args
	if argsFn == nil {
		argsFn = SofficeArgs
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, argsFn(srcPath, outDir)...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	logger := log.With().Str("module", "conversion.office").Str("src", srcPath).Dur("took", time.Since(start)).Logger()
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			logger.Warn().Dur("timeout", timeout).Msg("office conversion timed out")
			return "", newError(KindTimeout, "", fmt.Errorf("%s after %s", bin, timeout))
		case isNotFound(err):
			return "", newError(KindToolMissing, "", fmt.Errorf("%s not found; install LibreOffice or set conversion.office_bin: %w", bin, err))
		default:
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return "", newError(KindToolFailed, "", fmt.Errorf("%s: %s", bin, msg))
		}
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if ok, _ := afero.Exists(c.Fs, pdfPath); !ok {
		return "", newError(KindToolFailed, "", fmt.Errorf("PDF not generated at %s", pdfPath))
	}
	logger.Info().Str("pdf", pdfPath).Msg("office conversion done")
	return pdfPath, nil
}
