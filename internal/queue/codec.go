package queue

import (
	"encoding/json"

	"github.com/akowasch/domainsearch/internal/domain"
)

// jsonCodec adapts encoding/json to Codec[T] for any task type; each
// snapshot line is a self-contained JSON object.
type jsonCodec[T any] struct{}

func (jsonCodec[T]) Encode(v T) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func (jsonCodec[T]) Decode(line string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(line), &v)
	return v, err
}

// ScanTaskCodec, ReviewTaskCodec and RetryTaskCodec are the concrete
// codecs scan_queue, review_queue and the retry queue snapshot with.
var (
	ScanTaskCodec   Codec[domain.ScanTask]   = jsonCodec[domain.ScanTask]{}
	ReviewTaskCodec Codec[domain.ReviewTask] = jsonCodec[domain.ReviewTask]{}
	RetryTaskCodec  Codec[domain.RetryTask]  = jsonCodec[domain.RetryTask]{}
)
