// Package verifier defines the external document verification seam used by
// transfer confirmation.
package verifier

import (
	"context"
	"errors"

	"titleledger/internal/ownership/models"
)

// DocumentVerifier checks a submitted transfer document against an external
// authority. A nil return means the document is genuine.
type DocumentVerifier interface {
	Verify(ctx context.Context, doc models.TransferDocument) error
}

// Func adapts a plain function to a DocumentVerifier.
type Func func(ctx context.Context, doc models.TransferDocument) error

func (f Func) Verify(ctx context.Context, doc models.TransferDocument) error {
	return f(ctx, doc)
}

// AcceptAll approves every document. It stands in until a registry
// integration provides real verification.
type AcceptAll struct{}

func (AcceptAll) Verify(context.Context, models.TransferDocument) error {
	return nil
}

// Strict rejects documents that lack a stored artifact. It is the closest
// check available without an external registry: a document with no storage
// location cannot be audited later.
type Strict struct{}

func (Strict) Verify(_ context.Context, doc models.TransferDocument) error {
	if doc.Location == "" {
		return errors.New("document has no stored artifact")
	}
	if doc.Type == "" {
		return errors.New("document has no declared type")
	}
	return nil
}
