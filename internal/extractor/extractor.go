// Package extractor turns a receipt image or PDF into a validated split
// using a multimodal model.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/mmynk/splitthat/internal/metrics"
	"github.com/mmynk/splitthat/internal/models"
)

// Image is one picture sent to the model.
type Image struct {
	MIMEType string
	Data     []byte
}

// Inferrer sends a prompt plus images to a multimodal model and returns its
// raw text response.
type Inferrer interface {
	Infer(ctx context.Context, prompt string, images []Image) (string, error)
}

// PageRasterizer renders every page of a PDF to a PNG image, in page order.
type PageRasterizer interface {
	Pages(ctx context.Context, pdf []byte) ([][]byte, error)
}

// Extractor has no state beyond its collaborators and is safe for
// concurrent use.
type Extractor struct {
	model Inferrer
	pages PageRasterizer
}

// New returns an Extractor. pages may be nil, in which case PDFs are
// rejected as unsupported.
func New(model Inferrer, pages PageRasterizer) *Extractor {
	return &Extractor{model: model, pages: pages}
}

// Extract reads the receipt in media and returns the split the model
// proposes for participants, following instruction. It makes exactly one
// inference call and never retries.
func (e *Extractor) Extract(ctx context.Context, media []byte, contentType string, participants []string, instruction string) (*models.Split, error) {
	split, err := e.extract(ctx, media, contentType, participants, instruction)
	metrics.Extractions.WithLabelValues(outcome(err)).Inc()
	return split, err
}

func (e *Extractor) extract(ctx context.Context, media []byte, contentType string, participants []string, instruction string) (*models.Split, error) {
	if err := checkParticipants(participants); err != nil {
		return nil, err
	}

	images, err := e.images(ctx, media, contentType)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(participants, instruction)
	text, err := e.model.Infer(ctx, prompt, images)
	if err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	split, err := parseSplit(text, participants)
	if err != nil {
		slog.Warn("Model response rejected", "error", err, "pages", len(images))
		return nil, err
	}
	return split, nil
}

func (e *Extractor) images(ctx context.Context, media []byte, contentType string) ([]Image, error) {
	if len(media) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrMediaUnsupported)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMediaUnsupported, contentType)
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return []Image{{MIMEType: mediaType, Data: media}}, nil
	case mediaType == "application/pdf":
		if e.pages == nil {
			return nil, fmt.Errorf("%w: PDF rendering is not configured", ErrMediaUnsupported)
		}
		pages, err := e.pages.Pages(ctx, media)
		if err != nil {
			return nil, fmt.Errorf("failed to render PDF pages: %w", err)
		}
		if len(pages) == 0 {
			return nil, fmt.Errorf("%w: PDF has no pages", ErrMediaUnsupported)
		}
		images := make([]Image, len(pages))
		for i, p := range pages {
			images[i] = Image{MIMEType: "image/png", Data: p}
		}
		return images, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrMediaUnsupported, mediaType)
	}
}

func checkParticipants(participants []string) error {
	if len(participants) == 0 {
		return ErrInvalidParticipants
	}
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" || seen[key] {
			return ErrInvalidParticipants
		}
		seen[key] = true
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMediaUnsupported):
		return "unsupported_media"
	case isKind[*ParsingError](err):
		return "parsing_error"
	case isKind[*SchemaViolation](err):
		return "schema_violation"
	default:
		return "inference_error"
	}
}
