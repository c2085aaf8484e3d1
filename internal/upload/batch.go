package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
)

// EstimateSize returns the length of the JSON encoding of batch, which is a
// close proxy for the request body the store receives.
func EstimateSize(batch []Record) (int, error) {
	b, err := json.Marshal(batch)
	if err != nil {
		var mErr *MalformedMetadataError
		if errors.As(err, &mErr) {
			return 0, mErr
		}
		return 0, fmt.Errorf("estimate batch size: %w", err)
	}
	return len(b), nil
}

// MakeBatches partitions records into contiguous groups of target records
// and halves any group whose estimated size exceeds byteLimit until every
// group fits. Order is preserved and no batch is empty.
//
// A record that does not fit on its own is reported as an
// *OversizedRecordError and ends the sequence.
func MakeBatches(records []Record, target, byteLimit int) iter.Seq2[[]Record, error] {
	return func(yield func([]Record, error) bool) {
		if target < 1 || byteLimit < 1 {
			yield(nil, fmt.Errorf("%w: batch size %d, byte limit %d", ErrInvalidBatchConfig, target, byteLimit))
			return
		}
		for start := 0; start < len(records); start += target {
			end := min(start+target, len(records))
			if !emitFitting(records[start:end:end], byteLimit, yield) {
				return
			}
		}
	}
}

// emitFitting yields group if it fits, otherwise recurses on halves of it.
// It reports whether iteration should continue.
func emitFitting(group []Record, byteLimit int, yield func([]Record, error) bool) bool {
	size, err := EstimateSize(group)
	if err != nil {
		yield(nil, err)
		return false
	}
	if size <= byteLimit {
		return yield(group, nil)
	}
	if len(group) == 1 {
		yield(nil, &OversizedRecordError{ID: group[0].ID, Size: size, Limit: byteLimit})
		return false
	}

	half := max(1, len(group)/2)
	for start := 0; start < len(group); start += half {
		end := min(start+half, len(group))
		if !emitFitting(group[start:end:end], byteLimit, yield) {
			return false
		}
	}
	return true
}

// Dedupe drops records whose id was already seen, keeping the first
// occurrence. It returns the kept records and how many were dropped.
func Dedupe(records []Record) ([]Record, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}
