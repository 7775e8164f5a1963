package repos

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/reelsheet/montage-core/internal/types"
)

func progressToJSON(p *types.ProgressDocument) (datatypes.JSON, error) {
	if p == nil {
		return datatypes.JSON([]byte("{}")), nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// DecodeProgress unmarshals a Video's Progress blob into a ProgressDocument.
// An empty blob decodes to a zero-value document rather than an error, since
// a freshly-created video has not been initialized yet.
func DecodeProgress(blob datatypes.JSON) (*types.ProgressDocument, error) {
	var doc types.ProgressDocument
	if len(blob) == 0 {
		return &doc, nil
	}
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
