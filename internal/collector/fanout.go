package collector

import (
	"time"

	"github.com/google/uuid"

	"contentpipeline/internal/domain"
)

// topicID derives the stable identifier a topic message is keyed by: the
// item's own id when present, otherwise a deterministic hash-prefixed
// fallback so a redelivered item never mints a second topic, and only as a
// last resort (an item with neither an id nor a content hash) a random one.
func topicID(item domain.StandardItem, contentHash string) string {
	if item.ID != "" {
		return item.ID
	}
	if len(contentHash) >= 12 {
		return "topic_" + contentHash[:12]
	}
	return "topic_" + uuid.NewString()
}

// intMetadata reads an int-shaped metadata value, tolerating the int/float64
// shapes JSON round-tripping can produce.
func intMetadata(meta map[string]any, key string) *int {
	switch v := meta[key].(type) {
	case int:
		return &v
	case float64:
		n := int(v)
		return &n
	default:
		return nil
	}
}

func stringMetadata(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

// BuildTopicMessage wraps a surviving StandardItem into the E→F envelope:
// payload shape per TopicMessage, correlation_id = collection_id + "_" +
// topic_id.
func BuildTopicMessage(item domain.StandardItem, contentHash, collectionID, collectionBlob, serviceName string, priorityScore float64, now time.Time) domain.Envelope {
	tid := topicID(item, contentHash)

	msg := domain.TopicMessage{
		TopicID:        tid,
		Title:          item.Title,
		Source:         string(item.Source),
		CollectedAt:    item.CollectedAt.UTC().Format(time.RFC3339),
		PriorityScore:  priorityScore,
		CollectionID:   collectionID,
		CollectionBlob: collectionBlob,
		Subreddit:      stringMetadata(item.Metadata, domain.MetaSubreddit),
		URL:            item.URL,
		Upvotes:        intMetadata(item.Metadata, domain.MetaUpvotes),
		Comments:       intMetadata(item.Metadata, domain.MetaNumComments),
		Boosts:         intMetadata(item.Metadata, domain.MetaBoosts),
		Author:         stringMetadata(item.Metadata, domain.MetaAuthor),
	}

	payload := map[string]any{
		"topic_id":        msg.TopicID,
		"title":           msg.Title,
		"source":          msg.Source,
		"collected_at":    msg.CollectedAt,
		"priority_score":  msg.PriorityScore,
		"collection_id":   msg.CollectionID,
		"collection_blob": msg.CollectionBlob,
	}
	if msg.Subreddit != "" {
		payload["subreddit"] = msg.Subreddit
	}
	if msg.URL != "" {
		payload["url"] = msg.URL
	}
	if msg.Upvotes != nil {
		payload["upvotes"] = *msg.Upvotes
	}
	if msg.Comments != nil {
		payload["comments"] = *msg.Comments
	}
	if msg.Boosts != nil {
		payload["boosts"] = *msg.Boosts
	}
	if msg.Author != "" {
		payload["author"] = msg.Author
	}

	return domain.Envelope{
		Operation:     domain.OperationProcessTopic,
		ServiceName:   serviceName,
		Timestamp:     now.UTC(),
		CorrelationID: collectionID + "_" + tid,
		Payload:       payload,
	}
}
