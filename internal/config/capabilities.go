package config

import "strings"

// Capability paths disabled per platform. Filtering is recursive over nested
// records; a disabled path's value becomes absent.
var (
	webDisabledCapabilities = []string{
		"experimental.profilingProvider",
		"experimental.fileWatcher",
		"workspace.executeCommand",
	}
	desktopDisabledCapabilities = []string{
		"experimental.webviewBridge",
	}
)

// FilterCapabilities removes the capability paths disabled for a platform
// from a nested capability record. The input is not modified.
func FilterCapabilities(capabilities map[string]any, platform string) map[string]any {
	var disabled []string
	switch platform {
	case PlatformWeb:
		disabled = webDisabledCapabilities
	case PlatformDesktop:
		disabled = desktopDisabledCapabilities
	default:
		disabled = nil
	}

	out := deepCopyRecord(capabilities)
	for _, path := range disabled {
		removePath(out, strings.Split(path, "."))
	}
	return out
}

func deepCopyRecord(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepCopyRecord(nested)
		} else {
			out[k] = v
		}
	}
	return out
}

func removePath(record map[string]any, path []string) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		delete(record, path[0])
		return
	}
	nested, ok := record[path[0]].(map[string]any)
	if !ok {
		return
	}
	removePath(nested, path[1:])
}
