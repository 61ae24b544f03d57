package corpus

import (
	"encoding/binary"
	"math"

	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
)

// Hash layout of a corpus row.
const (
	fieldEntityType = "entity_type"
	fieldEntityID   = "entity_id"
	fieldContent    = "__content"
	fieldVector     = "__vector"

	vectorAlias = "vector"
)

var (
	keyPrefix = domain.KeyPrefix + "corpus:"
	indexName = keyPrefix + "idx"
)

func docKey(entityType, entityID string) string {
	return keyPrefix + entityType + ":" + entityID
}

func toHash(doc retrieval.CorpusDocument) map[string]string {
	return map[string]string{
		fieldEntityType: doc.EntityType,
		fieldEntityID:   doc.EntityID,
		fieldContent:    doc.Content,
		fieldVector:     string(encodeVector(doc.Embedding)),
	}
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
