package scheduler

// kindScripts maps a job kind to the external worker script that
// implements it, per original_source/verifiable-ai's worker_loop.rs
// dispatch table. The scripts themselves are external collaborators, out
// of this module's scope — only the selection logic is ours.
var kindScripts = map[string]string{
	"hf_download":   "/app/workers/hf_downloader.py",
	"lora_train":    "/app/workers/lora_trainer.py",
	"kb_index":      "/app/workers/kb_worker.py",
	"pack_build":    "/app/workers/pack_build.py",
	"text_generate": "/app/workers/text_generator.py",
}

// scriptForKind returns the worker script path for kind, and whether kind
// is known.
func scriptForKind(kind string) (string, bool) {
	script, ok := kindScripts[kind]
	return script, ok
}

// buildArgs derives the script's positional arguments from a job's
// payload. hf_download forwards repo_id and an optional revision;
// lora_train and the rest forward the job id so the script can load its
// own payload from the job store.
func buildArgs(kind, jobID string, payload map[string]any) []string {
	switch kind {
	case "hf_download":
		args := []string{stringField(payload, "repo_id")}
		if rev := stringField(payload, "revision"); rev != "" {
			args = append(args, rev)
		}
		return args
	default:
		return []string{jobID}
	}
}

func stringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	v, _ := payload[key].(string)
	return v
}

func extractDatasetID(payload map[string]any) (string, bool) {
	if payload == nil {
		return "", false
	}
	v, ok := payload["dataset_id"].(string)
	return v, ok && v != ""
}
