package detect

import (
	"context"

	"github.com/gabriel-vasile/mimetype"
)

// magicReadLimit is how much of the payload the magic detector inspects.
const magicReadLimit = 2048

// MagicDetector guesses from the leading bytes of the payload.
type MagicDetector struct{}

func (MagicDetector) Name() string { return "magic" }

func (MagicDetector) DetectType(_ context.Context, in Input) (string, error) {
	head, err := readPrefix(in, magicReadLimit)
	if err != nil {
		return "", err
	}
	return MediaType(mimetype.Detect(head).String()), nil
}
