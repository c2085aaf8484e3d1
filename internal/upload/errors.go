package upload

import (
	"errors"
	"fmt"
)

var (
	ErrOversizedRecord    = errors.New("record exceeds request size limit")
	ErrRemoteWrite        = errors.New("remote write failed")
	ErrMalformedMetadata  = errors.New("malformed metadata")
	ErrInvalidBatchConfig = errors.New("invalid batch configuration")
)

// OversizedRecordError reports a single record that cannot fit under the
// byte limit no matter how batches are split.
type OversizedRecordError struct {
	ID    string
	Size  int
	Limit int
}

func (e *OversizedRecordError) Error() string {
	return fmt.Sprintf("record %s is %d bytes, limit is %d", e.ID, e.Size, e.Limit)
}

func (e *OversizedRecordError) Is(target error) bool { return target == ErrOversizedRecord }

// RemoteWriteError wraps a sink failure for one batch. The batch is treated
// as failed in total.
type RemoteWriteError struct {
	BatchIndex int
	IDs        []string
	Err        error
}

func (e *RemoteWriteError) Error() string {
	return fmt.Sprintf("upsert batch %d (%d records): %v", e.BatchIndex, len(e.IDs), e.Err)
}

func (e *RemoteWriteError) Unwrap() error        { return e.Err }
func (e *RemoteWriteError) Is(target error) bool { return target == ErrRemoteWrite }

// MalformedMetadataError reports metadata that cannot be serialized for
// hashing or for the remote payload.
type MalformedMetadataError struct {
	Key    string
	Reason string
}

func (e *MalformedMetadataError) Error() string {
	if e.Key == "" {
		return "malformed metadata: " + e.Reason
	}
	return fmt.Sprintf("malformed metadata %q: %s", e.Key, e.Reason)
}

func (e *MalformedMetadataError) Is(target error) bool { return target == ErrMalformedMetadata }
