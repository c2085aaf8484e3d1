package upload

import "fmt"

// Summary describes the outcome of one ingestion run.
type Summary struct {
	Total      int
	Uploaded   int
	Duplicates int
	Batches    int
	Err        error
}

func (s Summary) Complete() bool {
	return s.Err == nil && s.Uploaded == s.Total
}

// Status is "completed", "failed" or "incomplete".
func (s Summary) Status() string {
	switch {
	case s.Complete():
		return "completed"
	case s.Err != nil:
		return "failed"
	}
	return "incomplete"
}

func (s Summary) String() string {
	if s.Complete() {
		return fmt.Sprintf("all %d chunks uploaded", s.Total)
	}
	if s.Err != nil {
		return fmt.Sprintf("uploaded %d of %d chunks before failure: %v", s.Uploaded, s.Total, s.Err)
	}
	return fmt.Sprintf("uploaded %d of %d chunks", s.Uploaded, s.Total)
}
