package api

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/repoview/pkg/metrics"
	"github.com/vanderheijden86/repoview/pkg/model"
)

// Tree-marker and blob-marker keys of the content document.
var (
	treeKeys = []string{"blobs", "trees", "submodules"}
	blobKeys = []string{"binary", "plain", "mime_type"}
)

// DecodePayload decodes a content document into its explicit variant.
// A document carrying any of the tree collections is a tree; one carrying
// blob fields is a blob; anything else, including JSON that is not an
// object, is PayloadUnknown with Raw set. Only malformed JSON is an error.
func DecodePayload(data []byte) (model.Payload, error) {
	defer metrics.Timer(metrics.Decode)()

	data = bytes.TrimSpace(data)
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		if !json.Valid(data) {
			return model.Payload{}, fmt.Errorf("decoding content document: %w", err)
		}
		probe = nil
	}

	switch {
	case hasAny(probe, treeKeys):
		var listing model.TreeListing
		if err := json.Unmarshal(data, &listing); err != nil {
			return model.Payload{}, fmt.Errorf("decoding tree listing: %w", err)
		}
		return model.Payload{Kind: model.PayloadTree, Tree: &listing}, nil

	case hasAny(probe, blobKeys):
		var blob model.BlobContent
		if err := json.Unmarshal(data, &blob); err != nil {
			return model.Payload{}, fmt.Errorf("decoding blob: %w", err)
		}
		return model.Payload{Kind: model.PayloadBlob, Blob: &blob}, nil
	}

	return model.Payload{Kind: model.PayloadUnknown, Raw: append([]byte(nil), data...)}, nil
}

func hasAny(m map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
