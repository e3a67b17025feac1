package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"titleledger/internal/ownership/models"
)

func TestAcceptAll(t *testing.T) {
	err := AcceptAll{}.Verify(context.Background(), models.TransferDocument{})
	assert.NoError(t, err)
}

func TestStrict(t *testing.T) {
	cases := []struct {
		name    string
		doc     models.TransferDocument
		wantErr bool
	}{
		{
			name: "complete document passes",
			doc:  models.TransferDocument{Type: "title_deed", Location: "s3://docs/deed.pdf"},
		},
		{
			name:    "missing location rejected",
			doc:     models.TransferDocument{Type: "title_deed"},
			wantErr: true,
		},
		{
			name:    "missing type rejected",
			doc:     models.TransferDocument{Location: "s3://docs/deed.pdf"},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Strict{}.Verify(context.Background(), tc.doc)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
