package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.New().String()
}

// MemberRefs is a list of member references. LLM output sometimes uses numeric
// indices and sometimes strings, so both decode into strings.
type MemberRefs []string

func (m *MemberRefs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("member references must be an array: %w", err)
	}

	refs := make(MemberRefs, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			refs = append(refs, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			if _, err := strconv.ParseFloat(n.String(), 64); err == nil {
				refs = append(refs, n.String())
				continue
			}
		}
		return fmt.Errorf("invalid member reference: %s", string(item))
	}
	*m = refs
	return nil
}
