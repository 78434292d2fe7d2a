/*
Package events provides an in-memory event bus for gearmand's job-lifecycle
notifications (created, completed, failed).

Publishers (the processing stage in pkg/process) call Bus.Publish with a
value Event; a single broadcast loop fans it out to every subscriber's
buffered channel without blocking the publisher, and, if one is attached,
to a Producer such as KafkaProducer for external consumers.

	Publish(Event) -> eventCh (buffered 100) -> broadcast loop -> {
	    subscriber channels (buffered 50, drop if full)
	    Producer.Publish (e.g. Kafka, best-effort)
	}

Subscribe/Unsubscribe mirror the channel-registration pattern: a
subscriber's channel is closed when unsubscribed, and a full subscriber
buffer causes that one delivery to be skipped rather than blocking the
bus — event delivery here is best-effort, not a replacement for the
queue.Adapter that makes background jobs themselves durable.
*/
package events
