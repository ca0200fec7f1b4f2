package eventbus

// TopicRecordEvents carries every record lifecycle event. No delivery
// ordering is assumed: stage order rests on event chaining plus the
// tracker's compare-and-swap.
var TopicRecordEvents = NewTopic("news-pipeline.record.events")

// AllTopics lists the topics the admin bootstrap must create.
var AllTopics = []Topic{
	TopicRecordEvents,
}
