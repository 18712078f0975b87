package domain

import "time"

// OperationProcessTopic is the envelope operation value for the E→F queue.
const OperationProcessTopic = "process_topic"

// OperationGenerateMarkdown is the envelope operation value for the F→G
// markdown-generation queue.
const OperationGenerateMarkdown = "generate_markdown"

// OperationMarkdownGenerated is the envelope operation value for the G→H
// site-publishing queue.
const OperationMarkdownGenerated = "markdown_generated"

// Envelope wraps every queue message uniformly, regardless of which queue it
// travels on.
type Envelope struct {
	Operation     string         `json:"operation"`
	ServiceName   string         `json:"service_name"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id"`
	Payload       map[string]any `json:"payload"`
}

// TopicMessage is the E→F queue payload. Required fields are validated by
// ValidateTopicPayload before a processor spends a lease on the message.
type TopicMessage struct {
	TopicID        string  `json:"topic_id"`
	Title          string  `json:"title"`
	Source         string  `json:"source"`
	CollectedAt    string  `json:"collected_at"`
	PriorityScore  float64 `json:"priority_score"`
	CollectionID   string  `json:"collection_id"`
	CollectionBlob string  `json:"collection_blob"`

	Subreddit string   `json:"subreddit,omitempty"`
	URL       string   `json:"url,omitempty"`
	Upvotes   *int     `json:"upvotes,omitempty"`
	Comments  *int     `json:"comments,omitempty"`
	Boosts    *int     `json:"boosts,omitempty"`
	Author    string   `json:"author,omitempty"`
}

// AttemptStatus enumerates the lifecycle of one ProcessingAttempt.
type AttemptStatus string

const (
	AttemptRunning   AttemptStatus = "running"
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
)

// ProcessingAttempt records one processor's attempt at a topic.
type ProcessingAttempt struct {
	AttemptID     string
	ProcessorID   string
	StartedAt     time.Time
	CompletedAt   *time.Time
	Status        AttemptStatus
	TokensUsed    int
	CostUSD       float64
	QualityScore  *float64
	WordCount     *int
	Error         string
}

// TopicStatus enumerates the lifecycle of a TopicState row.
type TopicStatus string

const (
	TopicPending    TopicStatus = "pending"
	TopicProcessing TopicStatus = "processing"
	TopicCompleted  TopicStatus = "completed"
	TopicFailed     TopicStatus = "failed"
)

// TopicState is F's durable record of a topic's processing lifecycle,
// carrying the current lease (if any) and the full attempt history.
type TopicState struct {
	TopicID          string
	Status           TopicStatus
	Attempts         []ProcessingAttempt
	CurrentLease     string
	LeaseExpiresAt   *time.Time
	CumulativeTokens int
	CumulativeCost   float64
}

// HasValidLease reports whether the topic currently has an unexpired lease
// held by some processor.
func (t *TopicState) HasValidLease(now time.Time) bool {
	return t.CurrentLease != "" && t.LeaseExpiresAt != nil && now.Before(*t.LeaseExpiresAt)
}

// HeldBy reports whether processorID currently holds a valid lease.
func (t *TopicState) HeldBy(processorID string, now time.Time) bool {
	return t.HasValidLease(now) && t.CurrentLease == processorID
}
