package client

import (
	"context"

	"github.com/menta2k/image-editor/pkg/types"
)

// VisionClient asks a vision model where the subject of an encoded image is.
type VisionClient interface {
	LocateSubject(ctx context.Context, model, prompt string, image []byte) (*types.Result, error)
}
