/*
Package event provides the pub/sub bus that carries sub-agent lifecycle events.

Every published [Event] is stamped with a bus-wide sequence number and a
timestamp. Within one bus, sequence numbers strictly increase in publish
order, which is what audit consumers use to check that a run's start
precedes its end.

# Delivery

Direct subscribers registered with [Bus.Subscribe] or [Bus.SubscribeAll]
receive the typed Event value. [Bus.PublishSync] calls them in the
publisher's goroutine before returning. [Bus.Publish] calls each one in its
own goroutine.

Every event is also published as JSON to the watermill gochannel topic
[Topic]. [Bus.Stream] subscribes to it; the HTTP server uses this for its
server-sent event stream.

# Event Types

  - subagent.start: a delegated run is about to begin ([SubAgentStartData])
  - subagent.end: a delegated run finished ([SubAgentEndData])
  - agents.reloaded: the agent registry was re-discovered ([AgentsReloadedData])
*/
package event
