// Package documents loads regulation files and splits them into retrievable chunks.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	applogger "RiskApprove/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// Metadata keys set on loaded documents and inherited by chunks.
const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaTitle  = "title"
	MetaChunk  = "chunk"
)

// PlaceholderText is indexed when the directory holds nothing loadable.
const PlaceholderText = "No regulations loaded."

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

var _ document.Loader = (*DirectoryLoader)(nil)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrPDFToolNotFound
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// LoaderOption configures DirectoryLoader.
type LoaderOption func(*DirectoryLoader)

// WithRunner replaces the command runner used for PDF extraction.
func WithRunner(r CommandRunner) LoaderOption {
	return func(d *DirectoryLoader) { d.runner = r }
}

// WithPDFToText sets the pdftotext binary.
func WithPDFToText(path string) LoaderOption {
	return func(d *DirectoryLoader) {
		if path != "" {
			d.pdftotext = path
		}
	}
}

// DirectoryLoader reads every supported file under a directory. PDFs become
// one document per page; text, markdown and HTML files one document each.
// Unreadable files are logged and skipped.
type DirectoryLoader struct {
	runner    CommandRunner
	pdftotext string
	logger    *applogger.Logger
}

func NewDirectoryLoader(l *applogger.Logger, opts ...LoaderOption) *DirectoryLoader {
	d := &DirectoryLoader{
		runner:    execRunner{},
		pdftotext: "pdftotext",
		logger:    l.With(applogger.String("component", "regulation-loader")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CheckPDFTool reports whether the pdftotext binary can be found.
func (d *DirectoryLoader) CheckPDFTool() error {
	if _, err := exec.LookPath(d.pdftotext); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// Load reads src.URI. When nothing can be loaded, including a missing
// directory, it returns a single placeholder document.
func (d *DirectoryLoader) Load(ctx context.Context, src document.Source, _ ...document.LoaderOption) ([]*schema.Document, error) {
	root := src.URI
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		d.logger.Warn("regulations directory does not exist", applogger.String("dir", root))
		return []*schema.Document{placeholder()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	var docs []*schema.Document
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileDocs, err := d.loadFile(ctx, path)
		if err != nil {
			d.logger.Error("failed to load regulation file", applogger.String("file", path), applogger.Error(err))
			continue
		}
		d.logger.Debug("loaded regulation file", applogger.String("file", path), applogger.Int("documents", len(fileDocs)))
		docs = append(docs, fileDocs...)
	}
	if len(docs) == 0 {
		d.logger.Warn("no regulation documents found, indexing placeholder", applogger.String("dir", root))
		return []*schema.Document{placeholder()}, nil
	}
	return docs, nil
}

func placeholder() *schema.Document {
	return &schema.Document{
		ID:       "placeholder",
		Content:  PlaceholderText,
		MetaData: map[string]any{},
	}
}

// IsPlaceholder reports whether doc is the empty-directory placeholder.
func IsPlaceholder(doc *schema.Document) bool {
	return doc != nil && doc.ID == "placeholder" && doc.Content == PlaceholderText
}

// Supported reports whether the loader handles the file extension of path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md", ".html", ".htm":
		return true
	default:
		return false
	}
}

func (d *DirectoryLoader) loadFile(ctx context.Context, path string) ([]*schema.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return d.loadPDF(ctx, path)
	case ".html", ".htm":
		return loadHTML(path)
	default:
		return loadText(path)
	}
}

func (d *DirectoryLoader) loadPDF(ctx context.Context, path string) ([]*schema.Document, error) {
	out, err := d.runner.Run(ctx, d.pdftotext, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, err
	}

	var docs []*schema.Document
	for i, page := range strings.Split(string(out), "\f") {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		docs = append(docs, &schema.Document{
			ID:      fmt.Sprintf("%s#page=%d", path, i+1),
			Content: page,
			MetaData: map[string]any{
				MetaSource: path,
				MetaPage:   i + 1,
			},
		})
	}
	return docs, nil
}

func loadText(path string) ([]*schema.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(string(b))
	if content == "" {
		return nil, nil
	}
	return []*schema.Document{{
		ID:       path,
		Content:  content,
		MetaData: map[string]any{MetaSource: path},
	}}, nil
}

func loadHTML(path string) ([]*schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	var text string
	if body.Length() > 0 {
		text = body.Text()
	} else {
		text = doc.Text()
	}
	content := collapseBlankLines(text)
	if content == "" {
		return nil, nil
	}

	meta := map[string]any{MetaSource: path}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta[MetaTitle] = title
	}
	return []*schema.Document{{ID: path, Content: content, MetaData: meta}}, nil
}

// collapseBlankLines trims each line and keeps at most one empty line between
// paragraphs, so the splitter still sees paragraph breaks.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
