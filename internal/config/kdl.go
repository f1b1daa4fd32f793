package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL attempts to load configuration from the workspace's .apexls.kdl
// file. A missing file is not an error: defaults apply.
func LoadKDL(workspaceRoot string) (*Settings, error) {
	kdlPath := filepath.Join(workspaceRoot, ".apexls.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return Default(), nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read .apexls.kdl: %w", err)
	}

	return parseKDL(string(content))
}

func parseKDL(content string) (*Settings, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "log_level":
			if s, ok := firstStringArg(n); ok {
				cfg.LogLevel = s
			}
		case "environment":
			for _, cn := range n.Children {
				if nodeName(cn) == "runtime_platform" {
					if s, ok := firstStringArg(cn); ok {
						cfg.Environment.RuntimePlatform = s
					}
				}
			}
		case "queue_processing":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_concurrency":
					for _, pn := range cn.Children {
						if v, ok := firstIntArg(pn); ok {
							cfg.QueueProcessing.MaxConcurrency[strings.ToUpper(nodeName(pn))] = v
						}
					}
				case "yield_interval":
					if v, ok := firstIntArg(cn); ok {
						cfg.QueueProcessing.YieldInterval = v
					}
				case "yield_delay_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.QueueProcessing.YieldDelayMs = v
					}
				}
			}
		case "scheduler":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "queue_capacity":
					for _, pn := range cn.Children {
						if v, ok := firstIntArg(pn); ok {
							cfg.Scheduler.QueueCapacity[strings.ToUpper(nodeName(pn))] = v
						}
					}
				case "max_high_priority_streak":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scheduler.MaxHighPriorityStreak = v
					}
				case "idle_sleep_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scheduler.IdleSleepMs = v
					}
				}
			}
		case "find_missing_artifact":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.FindMissingArtifact.Enabled = b
					}
				case "max_candidates_to_open":
					if v, ok := firstIntArg(cn); ok {
						cfg.FindMissingArtifact.MaxCandidatesToOpen = v
					}
				case "timeout_ms_hint":
					if v, ok := firstIntArg(cn); ok {
						cfg.FindMissingArtifact.TimeoutMsHint = v
					}
				}
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Helper functions leveraging the kdl-go document model.
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}
