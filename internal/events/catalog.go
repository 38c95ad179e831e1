// Package events implements the event bus and its two outbound dispatch
// engines: a closed event catalog, synchronous in-process subscribers,
// and asynchronous script-hook and webhook delivery.
package events

// Catalog maps every event name this engine emits to its payload keys.
// A meta-event, hook_executed, is deliberately excluded from the set of
// events the hook engine itself subscribes to.
var Catalog = map[string][]string{
	"pipeline_skipped":    {"file_path", "reason"},
	"upgrade_complete":    {"file_path", "output_path", "score"},
	"download_complete":   {"file_path", "output_path", "provider", "score"},
	"translation_complete": {"file_path", "output_path", "degraded", "source"},
	"pipeline_failed":     {"file_path", "reason", "error"},
	"job_queued":          {"job_id", "file_path"},
	"job_started":         {"job_id", "file_path"},
	"job_completed":       {"job_id", "file_path", "output_path"},
	"job_failed":          {"job_id", "file_path", "output_path", "error"},
	"wanted_scan_started": {},
	"wanted_scan_finished": {"inserted", "updated"},
	"wanted_item_progress": {"wanted_id", "file_path", "status"},
	"whisper_progress":    {"job_id", "file_path", "phase", "progress"},
	"whisper_completed":   {"job_id", "file_path"},
	"whisper_failed":      {"job_id", "file_path", "error"},
	"config_update":       {},
	"hook_executed":       {"hook_name", "event_name", "success"},
}

// eligibleForHooks reports whether name is in the subset of Catalog that
// the hook engine is allowed to subscribe to. hook_executed is deliberately absent, and no
// registration step walks the whole catalog blindly, so a hook can never
// fire itself.
func eligibleForHooks(name string) bool {
	return name != "hook_executed"
}
