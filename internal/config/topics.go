package config

const (
	// TopicIngestProgress is the NSQ topic receiving one event per uploaded batch.
	TopicIngestProgress = "ingest.progress"

	// TopicIngestCompleted is the NSQ topic receiving the final outcome of a run.
	TopicIngestCompleted = "ingest.completed"
)
