package sqlite

import "encoding/json"

// encodeTags and decodeTags marshal the five denormalized tag-list columns. Storing
// them as JSON blobs alongside the authoritative subjects+insight_subjects graph is
// deliberate read-locality denormalization (§9 "Dynamic tag columns"); both copies are
// written in the same transaction everywhere this package inserts or updates a row.
func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func decodeTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	_ = json.Unmarshal([]byte(raw), &tags)
	return tags
}
