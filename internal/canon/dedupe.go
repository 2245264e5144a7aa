package canon

import "github.com/tre1322/best-of-analyzer/internal/similarity"

// DefaultDedupeThreshold is the minimum token-sort score for two canonicals to share a bucket.
const DefaultDedupeThreshold = 90

// Bucket is a cluster of near-duplicate canonical names. The first member is
// the representative.
type Bucket struct {
	Representative string   `json:"representative"`
	Members        []string `json:"members"`
}

// Deduplicator merges near-duplicate canonical names by greedy single-pass
// clustering. Results depend on input order.
type Deduplicator struct {
	Threshold float64
}

// Dedupe walks canonicals in order and puts each into the first bucket whose
// representative scores at least the threshold against it, or opens a new
// bucket. It returns the canonical → representative mapping and the buckets
// in creation order. Repeated inputs are ignored after their first position.
func (d Deduplicator) Dedupe(canonicals []string) (map[string]string, []Bucket) {
	mapping := make(map[string]string, len(canonicals))
	var buckets []Bucket

	for _, c := range canonicals {
		if _, seen := mapping[c]; seen {
			continue
		}

		joined := false
		for i := range buckets {
			if similarity.TokenSortRatio(c, buckets[i].Representative) >= d.Threshold {
				buckets[i].Members = append(buckets[i].Members, c)
				mapping[c] = buckets[i].Representative
				joined = true
				break
			}
		}
		if !joined {
			buckets = append(buckets, Bucket{Representative: c, Members: []string{c}})
			mapping[c] = c
		}
	}

	return mapping, buckets
}
