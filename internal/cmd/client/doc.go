// Package client provides the `taskboard` command-line client.
//
// Configuration is read from an optional file (--config or
// TASKBOARD_CONFIG) overlaid with TASKBOARD_* environment variables, e.g.
// TASKBOARD_TRANSPORT_KIND=redis or TASKBOARD_GENERATOR_API_KEY.
//
// Usage
//
//	# interactive board over the relay (default transport)
//	taskboard board join --channel team
//
//	# same board over Redis pub/sub
//	taskboard board join --channel team --transport redis
//
//	# raw envelopes
//	taskboard channel tail --channel team --filter 'event == "update-task"'
//	taskboard channel publish --channel team --event edit-task --data '"0190c8a2-..."'
//
// Inside a board session type `help` for the command list. Drafts and
// rewrites are available when generator.api_key is set.
package client
