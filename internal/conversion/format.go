package conversion

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

type Format string

const (
	FormatImage  Format = "image"
	FormatPDF    Format = "pdf"
	FormatOffice Format = "office"
)

var extFormats = map[string]Format{
	".png":  FormatImage,
	".jpg":  FormatImage,
	".jpeg": FormatImage,
	".gif":  FormatImage,
	".bmp":  FormatImage,
	".pdf":  FormatPDF,
	".pptx": FormatOffice,
	".ppt":  FormatOffice,
	".odp":  FormatOffice,
	".docx": FormatOffice,
	".doc":  FormatOffice,
	".odt":  FormatOffice,
}

var mimeFormats = []struct {
	mime   string
	format Format
}{
	{"image/png", FormatImage},
	{"image/jpeg", FormatImage},
	{"image/gif", FormatImage},
	{"image/bmp", FormatImage},
	{"application/pdf", FormatPDF},
	{"application/vnd.openxmlformats-officedocument.presentationml.presentation", FormatOffice},
	{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", FormatOffice},
	{"application/vnd.ms-powerpoint", FormatOffice},
	{"application/msword", FormatOffice},
	{"application/vnd.oasis.opendocument.presentation", FormatOffice},
	{"application/vnd.oasis.opendocument.text", FormatOffice},
}

// SupportedExtension reports whether name carries an accepted extension.
func SupportedExtension(name string) bool {
	_, ok := extFormats[strings.ToLower(filepath.Ext(name))]
	return ok
}

// FormatFromName resolves the format from the original file name.
func FormatFromName(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	return "", &domain.ValidationError{Msg: fmt.Sprintf("%s: %q", ErrUnsupportedFormat, ext)}
}

// DetectFormat sniffs the stored upload. A recognized content type wins;
// anything else falls back to the extension of name, which is only trusted
// for office documents since images and pdf always carry a signature.
func DetectFormat(fs afero.Fs, path, name string) (Format, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", fmt.Errorf("sniff upload: %w", err)
	}
	for m := mt; m != nil; m = m.Parent() {
		for _, c := range mimeFormats {
			if m.Is(c.mime) {
				return c.format, nil
			}
		}
	}
	format, err := FormatFromName(name)
	if err != nil {
		return "", err
	}
	if format != FormatOffice {
		return "", &domain.ValidationError{Msg: fmt.Sprintf("content (%s) does not match %s", mt.String(), filepath.Ext(name))}
	}
	return format, nil
}
